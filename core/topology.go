package core

import (
	"github.com/signalsfoundry/interlocking-simulator/model"
)

// Topology is the immutable track graph: nodes joined by undirected track
// segments. It is built once before the simulation starts and never
// mutated afterwards; every accessor returns data by value or as a copy.
type Topology struct {
	nodes    map[model.NodeID]model.Node
	segments map[model.SegmentID]model.TrackSegment

	// byNode lists the segments touching each node, in input order.
	byNode map[model.NodeID][]model.SegmentID
}

// NewTopology validates nodes and segments and builds the graph.
func NewTopology(nodes []model.Node, segments []model.TrackSegment) (*Topology, error) {
	t := &Topology{
		nodes:    make(map[model.NodeID]model.Node, len(nodes)),
		segments: make(map[model.SegmentID]model.TrackSegment, len(segments)),
		byNode:   make(map[model.NodeID][]model.SegmentID),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, configErrorf("", "node with empty id")
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, configErrorf(string(n.ID), "duplicate node id")
		}
		t.nodes[n.ID] = n
	}

	for _, s := range segments {
		if s.ID == "" {
			return nil, configErrorf("", "segment with empty id")
		}
		if _, dup := t.segments[s.ID]; dup {
			return nil, configErrorf(string(s.ID), "duplicate segment id")
		}
		if _, ok := t.nodes[s.NodeA]; !ok {
			return nil, configErrorf(string(s.ID), "unknown endpoint node %q", s.NodeA)
		}
		if _, ok := t.nodes[s.NodeB]; !ok {
			return nil, configErrorf(string(s.ID), "unknown endpoint node %q", s.NodeB)
		}
		if s.NodeA == s.NodeB {
			return nil, configErrorf(string(s.ID), "segment loops on node %q", s.NodeA)
		}
		if s.LengthM <= 0 {
			return nil, configErrorf(string(s.ID), "non-positive length %f", s.LengthM)
		}
		if s.SpeedLimitMPS <= 0 {
			return nil, configErrorf(string(s.ID), "non-positive speed limit %f", s.SpeedLimitMPS)
		}
		t.segments[s.ID] = s
		t.byNode[s.NodeA] = append(t.byNode[s.NodeA], s.ID)
		t.byNode[s.NodeB] = append(t.byNode[s.NodeB], s.ID)
	}

	return t, nil
}

// Node returns the node with the given ID.
func (t *Topology) Node(id model.NodeID) (model.Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Segment returns the segment with the given ID.
func (t *Topology) Segment(id model.SegmentID) (model.TrackSegment, bool) {
	s, ok := t.segments[id]
	return s, ok
}

// SegmentsAt returns the IDs of all segments touching the given node.
func (t *Topology) SegmentsAt(id model.NodeID) []model.SegmentID {
	out := make([]model.SegmentID, len(t.byNode[id]))
	copy(out, t.byNode[id])
	return out
}

// NodeCount and SegmentCount report the size of the graph.
func (t *Topology) NodeCount() int    { return len(t.nodes) }
func (t *Topology) SegmentCount() int { return len(t.segments) }
