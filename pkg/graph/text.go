package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	maxNodes = 50_000_000
	maxEdges = 200_000_000
)

// noOffset marks FirstOut slots of nodes that have not been seen as an edge
// source yet. It is replaced by the backward fill in ReadText.
const noOffset = ^uint32(0)

type textState int

const (
	expectNodeCount textState = iota
	expectEdgeCount
	readingNodes
	readingEdges
	done
)

// ReadText parses the plain-text graph format:
//
//	<node count>
//	<edge count>
//	<id> <lat> <lon> [elevation]      one row per node, ids 0..n-1 in order
//	<source> <target> <meters> <class> one row per edge, grouped by source
//
// Blank lines and lines starting with '#' are ignored. Edges get the car
// profile; use WithProfile to change it.
func ReadText(r io.Reader) (*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		state              = expectNodeCount
		numNodes, numEdges uint32
		nodesRead          uint32
		edgesRead          uint32
		lastSource         uint32
		lat, lon           []float64
		elev               []int32
		firstOut           []uint32
		head, dist         []uint32
		class              []uint8
		lineNo             int
	)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		switch state {
		case expectNodeCount:
			n, err := parseCount(line, lineNo, "node count", maxNodes)
			if err != nil {
				return nil, err
			}
			numNodes = n
			state = expectEdgeCount

		case expectEdgeCount:
			m, err := parseCount(line, lineNo, "edge count", maxEdges)
			if err != nil {
				return nil, err
			}
			numEdges = m
			lat = make([]float64, numNodes)
			lon = make([]float64, numNodes)
			elev = make([]int32, numNodes)
			firstOut = make([]uint32, numNodes+1)
			for i := range firstOut {
				firstOut[i] = noOffset
			}
			head = make([]uint32, numEdges)
			dist = make([]uint32, numEdges)
			class = make([]uint8, numEdges)
			state = nextState(readingNodes, numNodes, numEdges)

		case readingNodes:
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, textError(lineNo, "node row needs id, lat, lon; got %d fields", len(fields))
			}
			id, err := strconv.ParseUint(fields[0], 10, 32)
			if err != nil {
				return nil, textError(lineNo, "node id %q is not an integer", fields[0])
			}
			if uint32(id) != nodesRead {
				return nil, textError(lineNo, "node id %d out of sequence, expected %d", id, nodesRead)
			}
			la, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || la < -90 || la > 90 {
				return nil, textError(lineNo, "invalid latitude %q", fields[1])
			}
			lo, err := strconv.ParseFloat(fields[2], 64)
			if err != nil || lo < -180 || lo > 180 {
				return nil, textError(lineNo, "invalid longitude %q", fields[2])
			}
			lat[nodesRead] = la
			lon[nodesRead] = lo
			if len(fields) >= 4 {
				el, err := strconv.ParseInt(fields[3], 10, 32)
				if err != nil {
					return nil, textError(lineNo, "invalid elevation %q", fields[3])
				}
				elev[nodesRead] = int32(el)
			}
			nodesRead++
			if nodesRead == numNodes {
				state = nextState(readingEdges, numNodes, numEdges)
			}

		case readingEdges:
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return nil, textError(lineNo, "edge row needs source, target, meters, class; got %d fields", len(fields))
			}
			src, err := parseNodeRef(fields[0], lineNo, numNodes)
			if err != nil {
				return nil, err
			}
			dst, err := parseNodeRef(fields[1], lineNo, numNodes)
			if err != nil {
				return nil, err
			}
			d, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, textError(lineNo, "invalid distance %q", fields[2])
			}
			c, err := strconv.ParseUint(fields[3], 10, 8)
			if err != nil {
				return nil, textError(lineNo, "invalid road class %q", fields[3])
			}
			if edgesRead > 0 && src < lastSource {
				return nil, textError(lineNo, "edges not grouped by source: %d after %d", src, lastSource)
			}
			if firstOut[src] == noOffset {
				firstOut[src] = edgesRead
			}
			head[edgesRead] = dst
			dist[edgesRead] = uint32(d)
			class[edgesRead] = uint8(c)
			lastSource = src
			edgesRead++
			if edgesRead == numEdges {
				state = done
			}

		case done:
			return nil, textError(lineNo, "unexpected data after %d nodes and %d edges", numNodes, numEdges)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Format: "text", Line: lineNo, Reason: "read failed", Err: err}
	}

	switch state {
	case expectNodeCount, expectEdgeCount:
		return nil, textError(lineNo, "missing header")
	case readingNodes:
		return nil, textError(lineNo, "unexpected end of file: %d of %d nodes", nodesRead, numNodes)
	case readingEdges:
		return nil, textError(lineNo, "unexpected end of file: %d of %d edges", edgesRead, numEdges)
	}

	// Nodes without outgoing edges inherit the next known offset, which
	// leaves their range empty.
	firstOut[numNodes] = numEdges
	next := numEdges
	for i := int(numNodes) - 1; i >= 0; i-- {
		if firstOut[i] == noOffset {
			firstOut[i] = next
		} else {
			next = firstOut[i]
		}
	}

	return newGraph(firstOut, head, dist, class, lat, lon, elev, DefaultProfile()), nil
}

// nextState skips the node and edge sections when they are empty.
func nextState(s textState, numNodes, numEdges uint32) textState {
	if s == readingNodes && numNodes == 0 {
		s = readingEdges
	}
	if s == readingEdges && numEdges == 0 {
		s = done
	}
	return s
}

func parseCount(line string, lineNo int, what string, limit uint64) (uint32, error) {
	v, err := strconv.ParseUint(line, 10, 32)
	if err != nil {
		return 0, textError(lineNo, "%s %q is not a non-negative integer", what, line)
	}
	if v > limit {
		return 0, textError(lineNo, "%s %d exceeds limit %d", what, v, limit)
	}
	return uint32(v), nil
}

func parseNodeRef(field string, lineNo int, numNodes uint32) (uint32, error) {
	v, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, textError(lineNo, "node reference %q is not an integer", field)
	}
	if uint32(v) >= numNodes {
		return 0, textError(lineNo, "node reference %d out of range [0, %d)", v, numNodes)
	}
	return uint32(v), nil
}

// WriteText writes g in the format ReadText accepts.
func WriteText(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n", g.NumNodes, g.NumEdges)
	for i := uint32(0); i < g.NumNodes; i++ {
		fmt.Fprintf(bw, "%d %s %s %d\n", i,
			strconv.FormatFloat(g.NodeLat[i], 'f', -1, 64),
			strconv.FormatFloat(g.NodeLon[i], 'f', -1, 64),
			g.Elevation[i])
	}
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			fmt.Fprintf(bw, "%d %d %d %d\n", u, g.Head[e], g.Distance[e], g.Class[e])
		}
	}
	return bw.Flush()
}
