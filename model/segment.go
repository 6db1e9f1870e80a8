package model

// SegmentID identifies a track segment, e.g. "track_twh_gbl_1".
type SegmentID string

// TrackSegment is an undirected edge connecting two nodes. It represents
// the bare track without a direction of travel. Immutable after
// construction.
type TrackSegment struct {
	ID    SegmentID
	NodeA NodeID
	NodeB NodeID

	// LengthM is the physical length in metres, typically derived from the
	// kilometre positions of the two endpoint nodes.
	LengthM float64

	// SpeedLimitMPS is the maximum permitted speed on this segment in m/s.
	SpeedLimitMPS float64
}

// Touches reports whether n is one of the segment's endpoints.
func (s TrackSegment) Touches(n NodeID) bool {
	return s.NodeA == n || s.NodeB == n
}

// Far returns the endpoint opposite to near. The second return is false
// when near is not an endpoint of the segment.
func (s TrackSegment) Far(near NodeID) (NodeID, bool) {
	switch near {
	case s.NodeA:
		return s.NodeB, true
	case s.NodeB:
		return s.NodeA, true
	default:
		return "", false
	}
}
