package core

import (
	"math"
	"slices"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

// lengthToleranceM is how far a declared route length may deviate from the
// sum of its segment lengths before the registry rejects it.
const lengthToleranceM = 0.001

// routeInfo is the registry's derived view of one route.
type routeInfo struct {
	def model.RouteDefinition

	// nodeChain is the ordered node sequence FromNode..ToNode. Its length
	// is len(def.Segments)+1; nodeChain[i] and nodeChain[i+1] are the
	// endpoints of def.Segments[i] in travel order.
	nodeChain []model.NodeID

	// releasePrefixes holds, for every interior PARTIAL_RELEASE_POINT node,
	// the number of segments lying before it, in ascending order. A train
	// whose rear has cleared that many segments may trigger an early
	// release of the conflicts confined to the cleared prefix.
	releasePrefixes []int
}

// Registry holds the validated routes and their static conflict relation.
// The conflict relation is computed once at build time and is immutable for
// the lifetime of the simulation; the topology does not change at runtime.
type Registry struct {
	topo   *Topology
	routes map[model.RouteID]*routeInfo
	order  []model.RouteID // ascending, for deterministic iteration

	// conflicts is the symmetric, irreflexive conflict relation.
	conflicts map[model.RouteID]map[model.RouteID]bool

	// lastConflictIdx maps an ordered route pair (a, b) to the highest
	// index of a segment of a implicated in the conflict with b. Once a
	// train on a has cleared past that index, the conflict with b no
	// longer holds it.
	lastConflictIdx map[model.RouteID]map[model.RouteID]int
}

// NewRegistry validates every route against the topology and computes the
// pairwise conflict relation.
func NewRegistry(topo *Topology, defs []model.RouteDefinition) (*Registry, error) {
	r := &Registry{
		topo:            topo,
		routes:          make(map[model.RouteID]*routeInfo, len(defs)),
		conflicts:       make(map[model.RouteID]map[model.RouteID]bool, len(defs)),
		lastConflictIdx: make(map[model.RouteID]map[model.RouteID]int, len(defs)),
	}

	for _, def := range defs {
		info, err := r.buildRoute(def)
		if err != nil {
			return nil, err
		}
		if _, dup := r.routes[def.ID]; dup {
			return nil, configErrorf(string(def.ID), "duplicate route id")
		}
		r.routes[def.ID] = info
		r.order = append(r.order, def.ID)
		r.conflicts[def.ID] = make(map[model.RouteID]bool)
		r.lastConflictIdx[def.ID] = make(map[model.RouteID]int)
	}
	slices.Sort(r.order)

	r.computeConflicts()
	return r, nil
}

// buildRoute checks one route definition: known segments, a contiguous
// chain from FromNode to ToNode, and a consistent total length.
func (r *Registry) buildRoute(def model.RouteDefinition) (*routeInfo, error) {
	id := string(def.ID)
	if def.ID == "" {
		return nil, configErrorf("", "route with empty id")
	}
	if len(def.Segments) == 0 {
		return nil, configErrorf(id, "route has no segments")
	}
	if _, ok := r.topo.Node(def.FromNode); !ok {
		return nil, configErrorf(id, "unknown start node %q", def.FromNode)
	}
	if _, ok := r.topo.Node(def.ToNode); !ok {
		return nil, configErrorf(id, "unknown end node %q", def.ToNode)
	}

	chain := make([]model.NodeID, 0, len(def.Segments)+1)
	chain = append(chain, def.FromNode)
	cur := def.FromNode
	var total float64
	for i, segID := range def.Segments {
		seg, ok := r.topo.Segment(segID)
		if !ok {
			return nil, configErrorf(id, "unknown segment %q", segID)
		}
		far, ok := seg.Far(cur)
		if !ok {
			return nil, configErrorf(id, "segment chain not contiguous at %q (segment %d)", segID, i)
		}
		total += seg.LengthM
		cur = far
		chain = append(chain, cur)
	}
	if cur != def.ToNode {
		return nil, configErrorf(id, "segment chain ends at %q, want %q", cur, def.ToNode)
	}
	if def.LengthM != 0 && math.Abs(def.LengthM-total) > lengthToleranceM {
		return nil, configErrorf(id, "declared length %.3f differs from segment sum %.3f", def.LengthM, total)
	}
	def.LengthM = total

	var prefixes []int
	for i := 1; i < len(chain)-1; i++ {
		if n, ok := r.topo.Node(chain[i]); ok && n.Kind == model.NodePartialRelease {
			prefixes = append(prefixes, i) // i segments lie before chain[i]
		}
	}

	return &routeInfo{def: def, nodeChain: chain, releasePrefixes: prefixes}, nil
}

// computeConflicts fills the symmetric conflict relation. Two routes
// conflict when they share at least one track segment, or when they both
// traverse a shared switch as an interior point with incompatible branch
// directions (different adjacent segment pairs). A route never conflicts
// with itself.
func (r *Registry) computeConflicts() {
	for i, a := range r.order {
		for _, b := range r.order[i+1:] {
			ia, ib := r.routes[a], r.routes[b]
			okA, idxA := conflictExtent(ia, ib, r.topo)
			if !okA {
				continue
			}
			_, idxB := conflictExtent(ib, ia, r.topo)
			r.conflicts[a][b] = true
			r.conflicts[b][a] = true
			r.lastConflictIdx[a][b] = idxA
			r.lastConflictIdx[b][a] = idxB
		}
	}
}

// conflictExtent reports whether a conflicts with b and, if so, the highest
// index of a segment of a implicated in the conflict.
func conflictExtent(a, b *routeInfo, topo *Topology) (bool, int) {
	conflict := false
	last := -1

	inB := make(map[model.SegmentID]bool, len(b.def.Segments))
	for _, s := range b.def.Segments {
		inB[s] = true
	}
	for i, s := range a.def.Segments {
		if inB[s] {
			conflict = true
			if i > last {
				last = i
			}
		}
	}

	// Interior switches traversed by both routes in incompatible directions.
	bPair := interiorSwitchPairs(b, topo)
	for i := 1; i < len(a.nodeChain)-1; i++ {
		nid := a.nodeChain[i]
		other, shared := bPair[nid]
		if !shared {
			continue
		}
		mine := segmentPair{a.def.Segments[i-1], a.def.Segments[i]}
		if mine.equals(other) {
			continue // same switch position, compatible
		}
		conflict = true
		if i > last {
			last = i // segment entering and leaving the switch; the later one governs
		}
	}

	return conflict, last
}

// segmentPair is the unordered pair of segments adjacent to an interior
// node. Two traversals of a switch are compatible exactly when they use the
// same pair, regardless of direction.
type segmentPair struct {
	x, y model.SegmentID
}

func (p segmentPair) equals(q segmentPair) bool {
	return (p.x == q.x && p.y == q.y) || (p.x == q.y && p.y == q.x)
}

func interiorSwitchPairs(info *routeInfo, topo *Topology) map[model.NodeID]segmentPair {
	pairs := make(map[model.NodeID]segmentPair)
	for i := 1; i < len(info.nodeChain)-1; i++ {
		nid := info.nodeChain[i]
		if n, ok := topo.Node(nid); ok && n.Kind == model.NodeSwitch {
			pairs[nid] = segmentPair{info.def.Segments[i-1], info.def.Segments[i]}
		}
	}
	return pairs
}

// Route returns the validated definition (with normalised length).
func (r *Registry) Route(id model.RouteID) (model.RouteDefinition, bool) {
	info, ok := r.routes[id]
	if !ok {
		return model.RouteDefinition{}, false
	}
	def := info.def
	def.Segments = slices.Clone(info.def.Segments)
	return def, true
}

// RouteIDs returns all route IDs in ascending order.
func (r *Registry) RouteIDs() []model.RouteID {
	return slices.Clone(r.order)
}

// NodeChain returns the ordered node sequence of the route, FromNode first.
func (r *Registry) NodeChain(id model.RouteID) []model.NodeID {
	info, ok := r.routes[id]
	if !ok {
		return nil
	}
	return slices.Clone(info.nodeChain)
}

// ConflictingRoutes returns the IDs of all routes in conflict with id, in
// ascending order.
func (r *Registry) ConflictingRoutes(id model.RouteID) []model.RouteID {
	set := r.conflicts[id]
	out := make([]model.RouteID, 0, len(set))
	for other := range set {
		out = append(out, other)
	}
	slices.Sort(out)
	return out
}

// InConflict reports whether a and b may not be active simultaneously.
func (r *Registry) InConflict(a, b model.RouteID) bool {
	return r.conflicts[a][b]
}

// LastConflictIndex returns the highest segment index of route a implicated
// in its conflict with b. The second return is false when the routes do not
// conflict.
func (r *Registry) LastConflictIndex(a, b model.RouteID) (int, bool) {
	if !r.conflicts[a][b] {
		return 0, false
	}
	return r.lastConflictIdx[a][b], true
}

// ReleasePrefixes returns the cleared-segment counts at which route id may
// partially release, ascending. Empty when the route passes no
// PARTIAL_RELEASE_POINT node.
func (r *Registry) ReleasePrefixes(id model.RouteID) []int {
	info, ok := r.routes[id]
	if !ok {
		return nil
	}
	return slices.Clone(info.releasePrefixes)
}

// SegmentCountOf returns the number of segments of route id.
func (r *Registry) SegmentCountOf(id model.RouteID) int {
	info, ok := r.routes[id]
	if !ok {
		return 0
	}
	return len(info.def.Segments)
}
