// Package routing implements the single-source shortest-path engine: a
// lazy-deletion Dijkstra that keeps its search tree between queries from
// the same source.
package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/azybler/tour_router/pkg/graph"
	"github.com/azybler/tour_router/pkg/queue"
)

// ErrNoPath is returned by Route and TotalCost when no path to the node is
// known for the current source.
var ErrNoPath = errors.New("routing: no path")

const unreached = math.MaxInt64

// Stats describes the work done by the last PathFromTo call.
type Stats struct {
	Extracted int  // heap entries popped, stale ones included
	Stale     int  // popped entries discarded because the node was settled
	Settled   int  // nodes whose cost became final
	Relaxed   int  // successful edge relaxations
	Cached    bool // answered from the tree of an earlier call
	EarlyStop bool // target settled on relaxation instead of extraction
}

type options struct {
	weighted bool
	queueCap int
}

// Option configures NewEngine.
type Option func(*options)

// WithWeighted makes the engine cost edges by class-weighted distance
// instead of raw meters.
func WithWeighted(weighted bool) Option {
	return func(o *options) { o.weighted = weighted }
}

// WithQueueCapacity sets the initial heap capacity.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCap = n }
}

// Engine holds the per-query state of Dijkstra over one graph. The graph is
// shared read-only; the Engine itself must not be used from more than one
// goroutine at a time. Create one Engine per concurrent caller.
type Engine struct {
	g        *graph.Graph
	weighted bool

	cost    []int64
	settled []bool
	pred    []uint32
	touched []uint32 // nodes with a finite cost, for fast reset
	pq      *queue.MinHeap

	source uint32
	// pending is the target the last query stopped at. It is settled but
	// its out-edges have not been relaxed, so resuming the search must
	// expand it first.
	pending uint32
	stats   Stats
}

// NewEngine allocates query state for g.
func NewEngine(g *graph.Graph, opts ...Option) *Engine {
	o := options{queueCap: int(g.NumNodes / 10)}
	for _, opt := range opts {
		opt(&o)
	}

	cost := make([]int64, g.NumNodes)
	pred := make([]uint32, g.NumNodes)
	for i := range cost {
		cost[i] = unreached
		pred[i] = graph.NoNode
	}
	return &Engine{
		g:        g,
		weighted: o.weighted,
		cost:     cost,
		settled:  make([]bool, g.NumNodes),
		pred:     pred,
		touched:  make([]uint32, 0, 1024),
		pq:       queue.New(o.queueCap),
		source:   graph.NoNode,
		pending:  graph.NoNode,
	}
}

// Graph returns the graph the engine searches.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Weighted reports whether edges are costed by class-weighted distance.
func (e *Engine) Weighted() bool { return e.weighted }

// Source returns the cached source, or graph.NoNode before the first query.
func (e *Engine) Source() uint32 { return e.source }

// LastStats returns counters for the most recent PathFromTo call.
func (e *Engine) LastStats() Stats { return e.stats }

func (e *Engine) checkNode(u uint32) error {
	if u >= e.g.NumNodes {
		return &graph.BoundsError{What: "node", Index: u, Limit: e.g.NumNodes}
	}
	return nil
}

// SetSource starts a new search tree rooted at s. Setting the cached
// source again keeps the existing tree.
func (e *Engine) SetSource(s uint32) error {
	if err := e.checkNode(s); err != nil {
		return err
	}
	if s == e.source {
		return nil
	}

	// Reset only touched entries.
	for _, u := range e.touched {
		e.cost[u] = unreached
		e.settled[u] = false
		e.pred[u] = graph.NoNode
	}
	e.touched = e.touched[:0]
	e.pq.Reset()

	e.source = s
	e.pending = graph.NoNode
	e.cost[s] = 0
	e.touched = append(e.touched, s)
	e.pq.Insert(s, 0)
	return nil
}

// PathFromTo searches from from until to is settled and reports whether a
// path exists. The error is non-nil only for out-of-range nodes.
//
// Calls sharing a source continue the same exploration, so a target that
// an earlier call already settled is answered without any work.
func (e *Engine) PathFromTo(from, to uint32) (bool, error) {
	if err := e.checkNode(to); err != nil {
		return false, err
	}
	if err := e.SetSource(from); err != nil {
		return false, err
	}
	e.stats = Stats{}

	if from == to {
		return true, nil
	}
	if e.settled[to] {
		e.stats.Cached = true
		return true, nil
	}

	if e.pending != graph.NoNode {
		p := e.pending
		e.pending = graph.NoNode
		e.relax(p, to)
	}

	for !e.pq.IsEmpty() {
		u, _, err := e.pq.ExtractMin()
		if err != nil {
			break
		}
		e.stats.Extracted++
		if e.settled[u] {
			e.stats.Stale++
			continue
		}
		e.settled[u] = true
		e.stats.Settled++
		if u == to {
			// Its out-edges are relaxed when the next query resumes.
			e.pending = u
			return true, nil
		}

		if e.relax(u, to) && e.canSettleEarly(to) {
			e.settled[to] = true
			e.stats.Settled++
			e.stats.EarlyStop = true
			e.pending = to
			return true, nil
		}
	}
	return false, nil
}

// canSettleEarly reports whether to's tentative cost is already final: no
// entry left in the heap is cheaper, and edge costs are non-negative.
func (e *Engine) canSettleEarly(to uint32) bool {
	_, minCost, err := e.pq.PeekMin()
	return err != nil || e.cost[to] <= minCost
}

// relax scans u's out-edges and reports whether target's cost improved.
func (e *Engine) relax(u, target uint32) bool {
	improved := false
	cu := e.cost[u]
	start, end := e.g.EdgesFrom(u)
	for i := start; i < end; i++ {
		v := e.g.Head[i]
		if e.settled[v] {
			continue
		}
		w := e.g.ArcCost(i, e.weighted)
		if w < 0 {
			continue
		}
		nc := cu + w
		if nc >= e.cost[v] {
			continue
		}
		if e.cost[v] == unreached {
			e.touched = append(e.touched, v)
		}
		e.cost[v] = nc
		e.pred[v] = u
		e.pq.Insert(v, nc)
		e.stats.Relaxed++
		if v == target {
			improved = true
		}
	}
	return improved
}

// Route returns the nodes from the cached source to to, both included.
func (e *Engine) Route(to uint32) ([]uint32, error) {
	if err := e.checkNode(to); err != nil {
		return nil, err
	}
	if e.source == graph.NoNode {
		return nil, fmt.Errorf("%w: no source set", ErrNoPath)
	}
	if to == e.source {
		return []uint32{to}, nil
	}
	if !e.settled[to] {
		return nil, fmt.Errorf("%w: node %d not reached from %d", ErrNoPath, to, e.source)
	}

	path := []uint32{to}
	for v := to; v != e.source; {
		v = e.pred[v]
		if v == graph.NoNode || len(path) > int(e.g.NumNodes) {
			return nil, fmt.Errorf("%w: predecessor chain from %d does not reach %d", ErrNoPath, to, e.source)
		}
		path = append(path, v)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// TotalCost returns the final cost of to from the cached source.
func (e *Engine) TotalCost(to uint32) (int64, error) {
	if err := e.checkNode(to); err != nil {
		return 0, err
	}
	if e.source == graph.NoNode {
		return 0, fmt.Errorf("%w: no source set", ErrNoPath)
	}
	if to != e.source && !e.settled[to] {
		return 0, fmt.Errorf("%w: node %d not reached from %d", ErrNoPath, to, e.source)
	}
	return e.cost[to], nil
}
