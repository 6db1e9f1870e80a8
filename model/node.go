package model

// NodeID identifies a topology node, e.g. "signal_42" or "switch_12a".
type NodeID string

// NodeKind enumerates the four kinds of points the physical infrastructure
// is spanned by.
type NodeKind int

const (
	// NodeSignal is a point where a route begins or ends.
	NodeSignal NodeKind = iota
	// NodeSwitch is a point where track segments branch.
	NodeSwitch
	// NodeTrackEnd is a dead end of the network, e.g. a buffer stop.
	NodeTrackEnd
	// NodePartialRelease marks a point past which the rear portion of a
	// route may be released before the whole route is cleared.
	NodePartialRelease
)

func (k NodeKind) String() string {
	switch k {
	case NodeSignal:
		return "SIGNAL"
	case NodeSwitch:
		return "SWITCH"
	case NodeTrackEnd:
		return "TRACK_END"
	case NodePartialRelease:
		return "PARTIAL_RELEASE_POINT"
	default:
		return "UNKNOWN"
	}
}

// Node is a vertex in the track graph. Immutable after construction.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// PositionKm is the operational position along the line in kilometres,
	// with three decimals for metre precision.
	PositionKm float64

	// DisplayX and DisplayY are 2D coordinates for an optional graphical
	// rendering. They carry no operational meaning.
	DisplayX float64
	DisplayY float64
}
