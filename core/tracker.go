package core

import (
	"context"
	"slices"

	"github.com/signalsfoundry/interlocking-simulator/internal/logging"
	"github.com/signalsfoundry/interlocking-simulator/internal/observability"
	"github.com/signalsfoundry/interlocking-simulator/model"
)

// positionEpsM absorbs float noise when comparing positions along a route.
const positionEpsM = 1e-6

// TrackerConfig holds the tunables of the train tracker.
type TrackerConfig struct {
	// TickSeconds is the duration of one simulation tick in seconds.
	TickSeconds float64
	// LookaheadM is the distance to the next route boundary at which a
	// train issues the request for its next schedule entry.
	LookaheadM float64
}

// DefaultTrackerConfig returns the stock configuration: one-second ticks
// and a 400 m request trigger.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{TickSeconds: 1.0, LookaheadM: 400.0}
}

// releaseMark is a partial-release point of a held route: the number of
// segments before it and its absolute position on the train's path.
type releaseMark struct {
	prefix int
	abs    float64
}

// heldRoute is a route the train currently occupies, annotated with the
// absolute positions (metres since the train's initial start node) needed
// for clearance decisions.
type heldRoute struct {
	id       model.RouteID
	entryIdx int

	startAbs float64
	endAbs   float64

	segIDs    []model.SegmentID
	segEndAbs []float64 // absolute end position per segment
	segLimits []float64 // speed limit per segment, m/s

	releases      []releaseMark
	firedReleases int
}

// trainState is the per-train dynamic state, owned by the Tracker and
// mutated once per tick. Route state is never touched directly; every
// reservation, occupancy, and release goes through the Interlocking
// operations.
type trainState struct {
	train model.Train
	kin   kinematics

	status model.TrainStatus
	speed  float64

	// frontAbs is the position of the train's front in metres since the
	// start node of its first schedule entry. rear = frontAbs - length.
	frontAbs float64
	// traveled accumulates the distance moved over all ticks.
	traveled float64

	held []heldRoute

	// nextIdx is the first schedule entry whose route has not been fully
	// released yet; it advances on every release.
	nextIdx int
	// frontEntryIdx is the schedule entry whose route the front will enter
	// next; it advances on every occupancy confirmation.
	frontEntryIdx int

	// Look-ahead flags: whether a request has been issued for the entry at
	// frontEntryIdx and at frontEntryIdx+1. When the front enters a route
	// the overnext flag shifts down, so an entry is never submitted twice.
	requestedNext     bool
	requestedOvernext bool

	// arrivedUpTo is the highest entry index whose arrival event has been
	// processed.
	arrivedUpTo int
	// dwellUntil, when set, holds the train stopped until that tick.
	dwellUntil *int64
	dwellEntry int
	// stopExemptUpTo marks entries whose scheduled stop is already served.
	stopExemptUpTo int

	// entryStartAbs[i] / entryEndAbs[i] bound the route of entry i on the
	// train's absolute axis.
	entryStartAbs []float64
	entryEndAbs   []float64

	delaySec float64

	halted     bool
	haltReason string
	done       bool
}

// Tracker advances every train's physical state each tick and drives the
// Interlocking engine with the resulting requests, occupancies, and
// releases.
type Tracker struct {
	cfg    TrackerConfig
	reg    *Registry
	engine *Interlocking

	trains map[model.TrainID]*trainState
	order  []model.TrainID // ascending, for reproducible tick processing

	log     logging.Logger
	metrics *observability.InterlockingCollector
}

// NewTracker validates each train's schedule against the registry and
// places the train at the start node of its first route. A malformed
// schedule does not fail construction: the affected train is halted and
// reported, matching the per-train isolation rule.
func NewTracker(reg *Registry, engine *Interlocking, trains []model.Train, cfg TrackerConfig, log logging.Logger, metrics *observability.InterlockingCollector) (*Tracker, error) {
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = 1.0
	}
	if cfg.LookaheadM <= 0 {
		cfg.LookaheadM = 400.0
	}
	if log == nil {
		log = logging.Noop()
	}

	tr := &Tracker{
		cfg:     cfg,
		reg:     reg,
		engine:  engine,
		trains:  make(map[model.TrainID]*trainState, len(trains)),
		log:     log,
		metrics: metrics,
	}

	for _, t := range trains {
		if t.ID == "" {
			return nil, configErrorf("", "train with empty id")
		}
		if _, dup := tr.trains[t.ID]; dup {
			return nil, configErrorf(string(t.ID), "duplicate train id")
		}
		if t.LengthM <= 0 {
			return nil, configErrorf(string(t.ID), "non-positive train length %f", t.LengthM)
		}
		if t.MaxSpeedMPS <= 0 {
			return nil, configErrorf(string(t.ID), "non-positive max speed %f", t.MaxSpeedMPS)
		}

		st := &trainState{
			train:          t,
			kin:            kinematics{accel: t.AccelMPS2, decel: t.DecelMPS2, vmax: t.MaxSpeedMPS},
			status:         model.StatusStopped,
			arrivedUpTo:    -1,
			dwellEntry:     -1,
			stopExemptUpTo: -1,
		}
		if len(t.Schedule) == 0 {
			st.done = true
		} else if err := tr.indexSchedule(st); err != nil {
			st.halted = true
			st.haltReason = err.Error()
			tr.log.Error(context.Background(), "train schedule rejected; train will not move",
				logging.Train(string(t.ID)), logging.String("error", err.Error()))
		}
		tr.trains[t.ID] = st
		tr.order = append(tr.order, t.ID)
	}
	slices.Sort(tr.order)
	return tr, nil
}

// indexSchedule resolves every schedule entry against the registry and
// precomputes the absolute start/end of each entry's route. The schedule
// must be a contiguous chain: each route starts where the previous one
// ends.
func (tr *Tracker) indexSchedule(st *trainState) error {
	var cum float64
	prevEnd := model.NodeID("")
	for i, e := range st.train.Schedule {
		def, ok := tr.reg.Route(e.RouteID)
		if !ok {
			return configErrorf(string(st.train.ID), "schedule entry %d references unknown route %q", i, e.RouteID)
		}
		if i == 0 {
			prevEnd = def.FromNode
		}
		if def.FromNode != prevEnd {
			return configErrorf(string(st.train.ID),
				"schedule entry %d: route %q starts at %q, previous leg ends at %q", i, e.RouteID, def.FromNode, prevEnd)
		}
		if e.DestinationNode != def.ToNode {
			return configErrorf(string(st.train.ID),
				"schedule entry %d: destination %q does not match route end %q", i, e.DestinationNode, def.ToNode)
		}
		st.entryStartAbs = append(st.entryStartAbs, cum)
		cum += def.LengthM
		st.entryEndAbs = append(st.entryEndAbs, cum)
		prevEnd = def.ToNode
	}
	return nil
}

// AdvanceAll runs one simulation tick over all trains in ascending train-ID
// order: first the movement pass (occupancies, partial and full releases,
// with their grant cascades), then the look-ahead request pass. Every
// release of the tick is therefore applied before any new request, so a
// grant never depends on a release processed later in the same tick.
func (tr *Tracker) AdvanceAll(tick int64) {
	for _, id := range tr.order {
		tr.moveTrain(tr.trains[id], tick)
	}
	for _, id := range tr.order {
		tr.lookahead(tr.trains[id], tick)
	}
}

// moveTrain advances one train's kinematics and position and reports
// boundary events to the engine.
func (tr *Tracker) moveTrain(st *trainState, tick int64) {
	if st.done || st.halted {
		return
	}

	// Scheduled dwell: hold until the planned departure tick.
	if st.dwellUntil != nil {
		if tick < *st.dwellUntil {
			st.status = model.StatusStopped
			st.speed = 0
			return
		}
		dep := st.train.Schedule[st.dwellEntry].PlannedDeparture
		if dep != nil {
			tr.setDelay(st, tick-*dep)
		}
		st.stopExemptUpTo = st.dwellEntry
		st.dwellUntil = nil
		st.dwellEntry = -1
	}

	authEnd, spans := tr.authority(st)
	distToStop := authEnd - st.frontAbs
	if distToStop < 0 {
		distToStop = 0
	}

	dist, newV, newStatus := tr.proposeMovement(st, distToStop, spans)
	if dist >= distToStop-positionEpsM {
		// Never advance past the limit of authority: clamp at the boundary
		// node and come to a stand.
		dist = distToStop
		newV = 0
		newStatus = model.StatusStopped
	}

	st.frontAbs += dist
	st.traveled += dist
	st.speed = newV
	st.status = newStatus

	if !tr.crossBoundaries(st, tick) {
		return
	}
	tr.processArrivals(st, tick)
	if !tr.processRear(st, tick) {
		return
	}

	// Terminal: once the front stands at the last destination and every
	// scheduled stop is served, the run ends and the train vacates the
	// routes its rear still covers.
	if st.arrivedUpTo == len(st.train.Schedule)-1 && st.dwellUntil == nil {
		for _, h := range st.held {
			if err := tr.engine.ReleaseRoute(h.id, st.train.ID, tick); err != nil {
				tr.haltTrain(st, err, tick)
				return
			}
		}
		st.held = nil
		st.nextIdx = len(st.train.Schedule)
		st.done = true
		st.status = model.StatusStopped
		st.speed = 0
		tr.log.Info(context.Background(), "train finished schedule",
			logging.Tick(tick), logging.Train(string(st.train.ID)))
	}
}

// segSpan is a stretch of track with one speed limit on the train's
// absolute axis.
type segSpan struct {
	startAbs float64
	endAbs   float64
	limit    float64
}

// authority returns the absolute end of the train's movement authority (the
// end of its contiguous held+reserved chain, cut short at the next schedule
// entry that demands a stop) together with the speed-limit spans covering
// it.
func (tr *Tracker) authority(st *trainState) (float64, []segSpan) {
	sched := st.train.Schedule

	chainEnd := st.frontAbs
	if len(st.held) > 0 {
		chainEnd = st.held[len(st.held)-1].endAbs
	}
	lastEntry := st.frontEntryIdx - 1

	var spans []segSpan
	for _, h := range st.held {
		spans = appendRouteSpans(spans, h.startAbs, h.segEndAbs, h.segLimits)
	}

	// Extend over consecutive routes already reserved for this train.
	for e := st.frontEntryIdx; e < len(sched); e++ {
		if tr.engine.ReservedFor(sched[e].RouteID) != st.train.ID {
			break
		}
		def, _ := tr.reg.Route(sched[e].RouteID)
		start := st.entryStartAbs[e]
		ends, limits := tr.segmentBounds(def, start)
		spans = appendRouteSpans(spans, start, ends, limits)
		chainEnd = st.entryEndAbs[e]
		lastEntry = e
	}

	// A schedule entry with a dwell stop caps the authority at its route
	// end until the stop has been served.
	authEnd := chainEnd
	for i := st.nextIdx; i <= lastEntry && i < len(sched); i++ {
		if i > st.stopExemptUpTo && requiresDwell(sched[i]) {
			if st.entryEndAbs[i] < authEnd {
				authEnd = st.entryEndAbs[i]
			}
			break
		}
	}
	return authEnd, spans
}

func appendRouteSpans(spans []segSpan, startAbs float64, ends, limits []float64) []segSpan {
	prev := startAbs
	for i := range ends {
		spans = append(spans, segSpan{startAbs: prev, endAbs: ends[i], limit: limits[i]})
		prev = ends[i]
	}
	return spans
}

func (tr *Tracker) segmentBounds(def model.RouteDefinition, startAbs float64) ([]float64, []float64) {
	ends := make([]float64, 0, len(def.Segments))
	limits := make([]float64, 0, len(def.Segments))
	cum := startAbs
	for _, segID := range def.Segments {
		seg, _ := tr.topoSegment(segID)
		cum += seg.LengthM
		ends = append(ends, cum)
		limits = append(limits, seg.SpeedLimitMPS)
	}
	return ends, limits
}

func (tr *Tracker) topoSegment(id model.SegmentID) (model.TrackSegment, bool) {
	return tr.reg.topo.Segment(id)
}

// proposeMovement applies the constant-acceleration state machine for one
// tick. Priority: braking for the authority end, braking for an upcoming
// lower speed limit, slowing to the current limit, then the normal
// accelerate/cruise cycle.
func (tr *Tracker) proposeMovement(st *trainState, distToStop float64, spans []segSpan) (float64, float64, model.TrainStatus) {
	dt := tr.cfg.TickSeconds
	v := st.speed
	k := st.kin

	if distToStop <= positionEpsM {
		return 0, 0, model.StatusStopped
	}

	// 1. Brake to stop at the end of authority.
	if distToStop <= k.brakingDistance(v) {
		dist, newV := k.brakeStep(v, 0, dt)
		if newV <= 0 {
			return dist, 0, model.StatusStopped
		}
		return dist, newV, model.StatusBraking
	}

	permitted := k.vmax
	for _, s := range spans {
		if s.endAbs > st.frontAbs+positionEpsM {
			if s.limit < permitted {
				permitted = s.limit
			}
			break
		}
	}

	// 2. Brake ahead of an upcoming lower limit.
	for _, s := range spans {
		if s.startAbs <= st.frontAbs+positionEpsM || s.startAbs > st.frontAbs+distToStop {
			continue
		}
		if s.limit >= v {
			continue
		}
		if s.startAbs-st.frontAbs <= k.brakingDistanceTo(v, s.limit) {
			dist, newV := k.brakeStep(v, s.limit, dt)
			if newV <= s.limit {
				return dist, newV, model.StatusCruising
			}
			return dist, newV, model.StatusBraking
		}
	}

	// 3. Over the current limit (e.g. after rolling onto a slower segment).
	if v > permitted {
		dist, newV := k.brakeStep(v, permitted, dt)
		if newV <= permitted {
			return dist, newV, model.StatusCruising
		}
		return dist, newV, model.StatusBraking
	}

	// 4. Accelerate toward the permitted speed, then cruise.
	if v < permitted {
		dist, newV := k.accelerateStep(v, permitted, dt)
		if newV >= permitted {
			return dist, permitted, model.StatusCruising
		}
		return dist, newV, model.StatusAccelerating
	}
	return v * dt, v, model.StatusCruising
}

// crossBoundaries confirms occupancy for every reserved route the front
// entered this tick. Returns false when the train was halted by a state
// error.
func (tr *Tracker) crossBoundaries(st *trainState, tick int64) bool {
	sched := st.train.Schedule
	for st.frontEntryIdx < len(sched) && st.frontAbs > st.entryStartAbs[st.frontEntryIdx]+positionEpsM {
		entry := sched[st.frontEntryIdx]
		if err := tr.engine.ConfirmOccupancy(entry.RouteID, st.train.ID, tick); err != nil {
			tr.haltTrain(st, err, tick)
			return false
		}
		st.held = append(st.held, tr.buildHeld(st, entry.RouteID, st.frontEntryIdx))
		st.frontEntryIdx++
		// The former overnext entry becomes the next one; its request, if
		// already issued, carries over.
		st.requestedNext = st.requestedOvernext
		st.requestedOvernext = false
	}
	return true
}

func (tr *Tracker) buildHeld(st *trainState, routeID model.RouteID, entryIdx int) heldRoute {
	def, _ := tr.reg.Route(routeID)
	start := st.entryStartAbs[entryIdx]
	ends, limits := tr.segmentBounds(def, start)

	var releases []releaseMark
	for _, prefix := range tr.reg.ReleasePrefixes(routeID) {
		releases = append(releases, releaseMark{prefix: prefix, abs: ends[prefix-1]})
	}

	return heldRoute{
		id:        routeID,
		entryIdx:  entryIdx,
		startAbs:  start,
		endAbs:    st.entryEndAbs[entryIdx],
		segIDs:    def.Segments,
		segEndAbs: ends,
		segLimits: limits,
		releases:  releases,
	}
}

// processArrivals fires the arrival event for every schedule entry whose
// destination the front has reached, updating delay and starting a dwell
// when the entry demands one.
func (tr *Tracker) processArrivals(st *trainState, tick int64) {
	sched := st.train.Schedule
	for i := st.arrivedUpTo + 1; i < len(sched); i++ {
		if st.frontAbs < st.entryEndAbs[i]-positionEpsM {
			break
		}
		st.arrivedUpTo = i
		if arr := sched[i].PlannedArrival; arr != nil {
			tr.setDelay(st, tick-*arr)
		}
		tr.log.Debug(context.Background(), "train arrived at destination node",
			logging.Tick(tick),
			logging.Train(string(st.train.ID)),
			logging.String("node", string(sched[i].DestinationNode)),
		)
		if i > st.stopExemptUpTo && requiresDwell(sched[i]) {
			until := *sched[i].PlannedDeparture
			if until <= tick {
				// Already past departure time: no dwell, but the stop
				// still counts as served.
				tr.setDelay(st, tick-until)
				st.stopExemptUpTo = i
				continue
			}
			st.dwellUntil = &until
			st.dwellEntry = i
			st.status = model.StatusStopped
			st.speed = 0
		}
	}
}

// processRear fires partial releases and full releases as the train's rear
// clears route segments. Returns false when the train was halted.
func (tr *Tracker) processRear(st *trainState, tick int64) bool {
	rearAbs := st.frontAbs - st.train.LengthM
	for len(st.held) > 0 {
		h := &st.held[0]

		for h.firedReleases < len(h.releases) && rearAbs >= h.releases[h.firedReleases].abs-positionEpsM {
			mark := h.releases[h.firedReleases]
			if _, err := tr.engine.PartialRelease(h.id, st.train.ID, mark.prefix, tick); err != nil {
				tr.haltTrain(st, err, tick)
				return false
			}
			h.firedReleases++
		}

		if rearAbs < h.endAbs-positionEpsM {
			break
		}
		if err := tr.engine.ReleaseRoute(h.id, st.train.ID, tick); err != nil {
			tr.haltTrain(st, err, tick)
			return false
		}
		st.held = st.held[1:]
		st.nextIdx++
	}
	return true
}

// lookahead issues the next and, when due, the overnext route request,
// relative to the route the front will enter next. The next entry is
// always processed before the overnext one, keeping same-tick submissions
// in schedule order.
func (tr *Tracker) lookahead(st *trainState, tick int64) {
	if st.done || st.halted {
		return
	}
	sched := st.train.Schedule
	next := st.frontEntryIdx

	if next < len(sched) && !st.requestedNext {
		if st.entryStartAbs[next]-st.frontAbs <= tr.cfg.LookaheadM {
			if _, err := tr.engine.SubmitRequest(st.train.ID, sched[next].RouteID, tick); err != nil {
				tr.haltTrain(st, err, tick)
				return
			}
			st.requestedNext = true
		}
	}

	// Overnext: requested when the next route boundary is closer than the
	// train is long, so a route shorter than the train never strands it
	// mid-route.
	if st.requestedNext && next+1 < len(sched) && !st.requestedOvernext {
		if st.entryStartAbs[next+1]-st.frontAbs <= st.train.LengthM {
			if _, err := tr.engine.SubmitRequest(st.train.ID, sched[next+1].RouteID, tick); err != nil {
				tr.haltTrain(st, err, tick)
				return
			}
			st.requestedOvernext = true
		}
	}
}

// haltTrain isolates a desynchronised train: it is reported and stops
// progressing, while every other train continues normally.
func (tr *Tracker) haltTrain(st *trainState, err error, tick int64) {
	st.halted = true
	st.haltReason = err.Error()
	st.status = model.StatusStopped
	st.speed = 0
	tr.metrics.IncStateErrors()
	tr.log.Error(context.Background(), "train halted",
		logging.Tick(tick),
		logging.Train(string(st.train.ID)),
		logging.String("error", err.Error()),
	)
}

func (tr *Tracker) setDelay(st *trainState, delayTicks int64) {
	st.delaySec = float64(delayTicks) * tr.cfg.TickSeconds
	tr.metrics.SetTrainDelay(string(st.train.ID), st.delaySec)
}

// requiresDwell reports whether the entry schedules an actual stop rather
// than a pass-through. A pass-through either carries no times or equal
// arrival and departure.
func requiresDwell(e model.ScheduleEntry) bool {
	if e.PlannedDeparture == nil {
		return false
	}
	if e.PlannedArrival == nil {
		return true
	}
	return *e.PlannedDeparture > *e.PlannedArrival
}

// TrainIDs returns all train IDs in processing order.
func (tr *Tracker) TrainIDs() []model.TrainID {
	return slices.Clone(tr.order)
}
