package model

// TrainID identifies a train, e.g. "ICE_101".
type TrainID string

// TrainStatus enumerates the physical states a train can be in.
type TrainStatus int

const (
	StatusStopped TrainStatus = iota
	StatusAccelerating
	StatusCruising
	StatusBraking
)

func (s TrainStatus) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusAccelerating:
		return "ACCELERATING"
	case StatusCruising:
		return "CRUISING"
	case StatusBraking:
		return "BRAKING"
	default:
		return "UNKNOWN"
	}
}

// ScheduleEntry is one step of a train's schedule: the route to request
// next and the destination node reached at its end. Planned times are in
// simulation ticks; nil means a pure pass-through without time keeping.
// For a pass-through with times, arrival equals departure.
type ScheduleEntry struct {
	RouteID         RouteID
	DestinationNode NodeID

	PlannedArrival   *int64
	PlannedDeparture *int64
}

// Train holds the static properties of a single train. Dynamic state
// (status, speed, position, delay, schedule progress, look-ahead flags) is
// owned by the train tracker and mutated once per simulation tick.
type Train struct {
	ID   TrainID
	Type string // e.g. "ICE", "Regionalbahn", "Gueterzug"

	// LengthM matters for clearance: a route is only released once the
	// train's rear, LengthM behind its front, has left it.
	LengthM float64

	MaxSpeedMPS float64
	// AccelMPS2 and DecelMPS2 are the simplified constant acceleration and
	// braking deceleration rates (both positive).
	AccelMPS2 float64
	DecelMPS2 float64

	// Schedule is the full ordered schedule. Immutable after creation.
	Schedule []ScheduleEntry
}
