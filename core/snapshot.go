package core

import (
	"slices"

	"github.com/google/uuid"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

// PositionAnchor pins a train's front either to a point on a segment
// (offset metres from the segment's start in travel direction) or exactly
// onto a node.
type PositionAnchor struct {
	OnSegment bool            `json:"on_segment"`
	Segment   model.SegmentID `json:"segment,omitempty"`
	OffsetM   float64         `json:"offset_m"`
	Node      model.NodeID    `json:"node,omitempty"`
}

// RequestSnapshot is a queued route request as seen by observers.
type RequestSnapshot struct {
	ID      uuid.UUID     `json:"id"`
	TrainID model.TrainID `json:"train_id"`
	Tick    int64         `json:"tick"`
}

// RouteSnapshot is the observable dynamic state of one route.
type RouteSnapshot struct {
	ID          model.RouteID     `json:"id"`
	OccupiedBy  model.TrainID     `json:"occupied_by,omitempty"`
	ReservedFor model.TrainID     `json:"reserved_for,omitempty"`
	BlockedBy   []model.RouteID   `json:"blocked_by,omitempty"`
	Queue       []RequestSnapshot `json:"queue,omitempty"`
}

// TrainSnapshot is the observable dynamic state of one train.
type TrainSnapshot struct {
	ID        model.TrainID  `json:"id"`
	Status    string         `json:"status"`
	SpeedMPS  float64        `json:"speed_mps"`
	Position  PositionAnchor `json:"position"`
	TraveledM float64        `json:"traveled_m"`
	DelaySec  float64        `json:"delay_sec"`
	NextIdx   int             `json:"next_schedule_entry"`
	Held      []model.RouteID `json:"held_routes,omitempty"`
	Finished  bool            `json:"finished,omitempty"`
	Halted    bool            `json:"halted,omitempty"`
	HaltInfo  string          `json:"halt_info,omitempty"`
}

// SimulationSnapshot is a deep copy of the full observable simulation
// state after one tick. Observers may hold it indefinitely; it never
// aliases engine- or tracker-owned state.
type SimulationSnapshot struct {
	RunID  string          `json:"run_id"`
	Tick   int64           `json:"tick"`
	Trains []TrainSnapshot `json:"trains"`
	Routes []RouteSnapshot `json:"routes"`
}

// Snapshot captures the current state of all routes and trains, in
// ascending ID order.
func (se *SimulationEngine) Snapshot(tick int64) SimulationSnapshot {
	snap := SimulationSnapshot{RunID: se.runID.String(), Tick: tick}

	for _, id := range se.registry.RouteIDs() {
		rs := RouteSnapshot{
			ID:          id,
			OccupiedBy:  se.interlocking.OccupiedBy(id),
			ReservedFor: se.interlocking.ReservedFor(id),
			BlockedBy:   se.interlocking.BlockedBy(id),
		}
		for _, req := range se.interlocking.QueuedRequests(id) {
			rs.Queue = append(rs.Queue, RequestSnapshot{ID: req.ID, TrainID: req.TrainID, Tick: req.Tick})
		}
		snap.Routes = append(snap.Routes, rs)
	}

	for _, id := range se.tracker.TrainIDs() {
		st := se.tracker.trains[id]
		ts := TrainSnapshot{
			ID:        id,
			Status:    st.status.String(),
			SpeedMPS:  st.speed,
			Position:  se.tracker.position(st),
			TraveledM: st.traveled,
			DelaySec:  st.delaySec,
			NextIdx:   st.nextIdx,
			Finished:  st.done,
			Halted:    st.halted,
			HaltInfo:  st.haltReason,
		}
		for _, h := range st.held {
			ts.Held = append(ts.Held, h.id)
		}
		snap.Trains = append(snap.Trains, ts)
	}
	return snap
}

// position derives the front anchor of a train from its absolute progress.
func (tr *Tracker) position(st *trainState) PositionAnchor {
	sched := st.train.Schedule

	if len(st.held) > 0 {
		h := st.held[len(st.held)-1]
		for i, end := range h.segEndAbs {
			if st.frontAbs < end-positionEpsM {
				segStart := h.startAbs
				if i > 0 {
					segStart = h.segEndAbs[i-1]
				}
				return PositionAnchor{OnSegment: true, Segment: h.segIDs[i], OffsetM: st.frontAbs - segStart}
			}
		}
		// Exactly at the route's end node.
		if def, ok := tr.reg.Route(h.id); ok {
			return PositionAnchor{Node: def.ToNode}
		}
		return PositionAnchor{}
	}

	switch {
	case st.done && len(sched) > 0:
		return PositionAnchor{Node: sched[len(sched)-1].DestinationNode}
	case st.frontEntryIdx < len(sched):
		if def, ok := tr.reg.Route(sched[st.frontEntryIdx].RouteID); ok {
			return PositionAnchor{Node: def.FromNode}
		}
	}
	return PositionAnchor{}
}

// Train returns the snapshot of one train.
func (s SimulationSnapshot) Train(id model.TrainID) (TrainSnapshot, bool) {
	idx := slices.IndexFunc(s.Trains, func(t TrainSnapshot) bool { return t.ID == id })
	if idx < 0 {
		return TrainSnapshot{}, false
	}
	return s.Trains[idx], true
}

// Route returns the snapshot of one route.
func (s SimulationSnapshot) Route(id model.RouteID) (RouteSnapshot, bool) {
	idx := slices.IndexFunc(s.Routes, func(r RouteSnapshot) bool { return r.ID == id })
	if idx < 0 {
		return RouteSnapshot{}, false
	}
	return s.Routes[idx], true
}
