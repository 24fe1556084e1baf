// Package queue provides the array-backed binary min-heap used by the
// shortest-path engine.
package queue

import "errors"

// ErrEmptyQueue is returned by PeekMin and ExtractMin on an empty heap.
var ErrEmptyQueue = errors.New("queue: empty")

// MinHeap is a concrete-typed min-heap over (node, cost) pairs.
// Avoids interface boxing overhead of container/heap.
//
// There is no decrease-key: the same node may be inserted many times and
// callers discard stale entries when they pop them.
type MinHeap struct {
	nodes []uint32
	costs []int64
	size  int
}

// New returns an empty heap with room for capacity entries.
func New(capacity int) *MinHeap {
	capacity = max(capacity, 1)
	return &MinHeap{
		nodes: make([]uint32, capacity),
		costs: make([]int64, capacity),
	}
}

// Len returns the number of entries, stale ones included.
func (h *MinHeap) Len() int { return h.size }

// IsEmpty reports whether the heap has no entries.
func (h *MinHeap) IsEmpty() bool { return h.size == 0 }

// Cap returns the current backing capacity.
func (h *MinHeap) Cap() int { return len(h.nodes) }

// Insert adds (node, cost), growing the backing arrays by half plus one
// when full.
func (h *MinHeap) Insert(node uint32, cost int64) {
	if h.size == len(h.nodes) {
		h.grow()
	}
	h.nodes[h.size] = node
	h.costs[h.size] = cost
	h.size++
	h.siftUp(h.size - 1)
}

// PeekMin returns the cheapest entry without removing it.
func (h *MinHeap) PeekMin() (node uint32, cost int64, err error) {
	if h.size == 0 {
		return 0, 0, ErrEmptyQueue
	}
	return h.nodes[0], h.costs[0], nil
}

// ExtractMin removes and returns the cheapest entry.
func (h *MinHeap) ExtractMin() (node uint32, cost int64, err error) {
	if h.size == 0 {
		return 0, 0, ErrEmptyQueue
	}
	node, cost = h.nodes[0], h.costs[0]
	h.size--
	h.nodes[0] = h.nodes[h.size]
	h.costs[0] = h.costs[h.size]
	if h.size > 0 {
		h.siftDown(0)
	}
	return node, cost, nil
}

// Reset empties the heap but keeps its capacity.
func (h *MinHeap) Reset() {
	h.size = 0
}

func (h *MinHeap) grow() {
	c := len(h.nodes)
	newCap := c + c/2 + 1
	nodes := make([]uint32, newCap)
	costs := make([]int64, newCap)
	copy(nodes, h.nodes[:h.size])
	copy(costs, h.costs[:h.size])
	h.nodes, h.costs = nodes, costs
}

func (h *MinHeap) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.costs[i], h.costs[j] = h.costs[j], h.costs[i]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.costs[i] >= h.costs[parent] {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := h.size
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.costs[left] < h.costs[smallest] {
			smallest = left
		}
		if right < n && h.costs[right] < h.costs[smallest] {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}
