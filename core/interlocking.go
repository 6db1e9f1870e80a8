package core

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/signalsfoundry/interlocking-simulator/internal/logging"
	"github.com/signalsfoundry/interlocking-simulator/internal/observability"
	"github.com/signalsfoundry/interlocking-simulator/model"
)

// routeState is the dynamic state of one route. It is owned exclusively by
// the Interlocking engine; the tracker and observers only ever see copies.
//
// Lifecycle per route: FREE -> RESERVED -> OCCUPIED -> FREE. A grant always
// passes through RESERVED, even when the train enters in the same tick, so
// that look-ahead granting works uniformly.
type routeState struct {
	occupiedBy  model.TrainID // "" when no train is physically on the route
	reservedFor model.TrainID // "" when not reserved

	// reservedReq is the request the current reservation was granted from.
	reservedReq *model.RouteRequest

	// blockedBy holds the conflicting routes currently occupied or
	// reserved. Maintained incrementally on every state change of a
	// conflicting route, never recomputed from scratch.
	blockedBy map[model.RouteID]bool

	// queue is the FIFO of pending requests. Strictly first-come,
	// first-served; there is no priority override.
	queue []model.RouteRequest
}

func (s *routeState) free() bool {
	return s.occupiedBy == "" && s.reservedFor == "" && len(s.blockedBy) == 0
}

// Interlocking grants, queues, and releases routes. All mutation of route
// state goes through its operations; callers observe state via the
// read-only accessors or engine snapshots.
type Interlocking struct {
	reg    *Registry
	states map[model.RouteID]*routeState

	log     logging.Logger
	metrics *observability.InterlockingCollector
}

// NewInterlocking builds the engine with every route FREE. logger and
// metrics may be nil.
func NewInterlocking(reg *Registry, log logging.Logger, metrics *observability.InterlockingCollector) *Interlocking {
	if log == nil {
		log = logging.Noop()
	}
	states := make(map[model.RouteID]*routeState)
	for _, id := range reg.RouteIDs() {
		states[id] = &routeState{blockedBy: make(map[model.RouteID]bool)}
	}
	return &Interlocking{reg: reg, states: states, log: log, metrics: metrics}
}

// SubmitRequest creates a RouteRequest for trainID and appends it to the
// route's queue, then immediately attempts a grant.
//
// Precondition (enforced by the caller via its look-ahead flags): the train
// has no outstanding request or reservation for this route. A duplicate
// submission is a caller bug, not something the engine defends against.
func (il *Interlocking) SubmitRequest(trainID model.TrainID, routeID model.RouteID, tick int64) (model.RouteRequest, error) {
	st, ok := il.states[routeID]
	if !ok {
		return model.RouteRequest{}, stateErrorf("SubmitRequest", "unknown route %q requested by train %q", routeID, trainID)
	}
	req := model.RouteRequest{
		ID:      uuid.New(),
		TrainID: trainID,
		RouteID: routeID,
		Tick:    tick,
	}
	st.queue = append(st.queue, req)
	il.metrics.AddQueued(1)
	il.log.Debug(context.Background(), "route requested",
		logging.Tick(tick),
		logging.Train(string(trainID)),
		logging.Route(string(routeID)),
		logging.String("request_id", req.ID.String()),
	)
	il.TryGrant(routeID, tick)
	return req, nil
}

// TryGrant reserves the route for the head of its queue if the route is
// FREE and unblocked. It reports whether a grant occurred; calling it with
// no eligible head is a no-op.
func (il *Interlocking) TryGrant(routeID model.RouteID, tick int64) bool {
	st, ok := il.states[routeID]
	if !ok || len(st.queue) == 0 || !st.free() {
		return false
	}

	req := st.queue[0]
	st.queue = st.queue[1:]
	st.reservedFor = req.TrainID
	st.reservedReq = &req
	il.blockConflicts(routeID)

	il.metrics.AddQueued(-1)
	il.metrics.IncGrants()
	il.metrics.SetReserved(il.countReserved())
	il.log.Info(context.Background(), "route granted",
		logging.Tick(tick),
		logging.Train(string(req.TrainID)),
		logging.Route(string(routeID)),
		logging.Int("waited_ticks", int(tick-req.Tick)),
	)
	return true
}

// ConfirmOccupancy records that the train's front has entered the route's
// first segment, moving the route from RESERVED to OCCUPIED.
func (il *Interlocking) ConfirmOccupancy(routeID model.RouteID, trainID model.TrainID, tick int64) error {
	st, ok := il.states[routeID]
	if !ok {
		return stateErrorf("ConfirmOccupancy", "unknown route %q", routeID)
	}
	if st.reservedFor != trainID {
		return stateErrorf("ConfirmOccupancy",
			"train %q entered route %q reserved for %q", trainID, routeID, st.reservedFor)
	}
	st.occupiedBy = trainID
	st.reservedFor = ""
	st.reservedReq = nil
	// The route stays active, so conflicting routes remain blocked.
	il.metrics.SetOccupied(il.countOccupied())
	il.metrics.SetReserved(il.countReserved())
	il.log.Debug(context.Background(), "route occupied",
		logging.Tick(tick), logging.Train(string(trainID)), logging.Route(string(routeID)))
	return nil
}

// ReleaseRoute records that the train's rear has cleared every segment of
// the route. The route becomes FREE, conflicting routes are unblocked, and
// any newly grantable routes are granted in ascending route-ID order so a
// single release deterministically unblocks several waiters.
func (il *Interlocking) ReleaseRoute(routeID model.RouteID, trainID model.TrainID, tick int64) error {
	st, ok := il.states[routeID]
	if !ok {
		return stateErrorf("ReleaseRoute", "unknown route %q", routeID)
	}
	if st.occupiedBy != trainID {
		return stateErrorf("ReleaseRoute",
			"train %q released route %q occupied by %q", trainID, routeID, st.occupiedBy)
	}
	st.occupiedBy = ""
	changed := il.unblockConflicts(routeID, nil)
	// The freed route may have waiters of its own.
	changed = append(changed, routeID)
	slices.Sort(changed)

	il.metrics.IncReleases()
	il.metrics.SetOccupied(il.countOccupied())
	il.log.Info(context.Background(), "route released",
		logging.Tick(tick), logging.Train(string(trainID)), logging.Route(string(routeID)))

	for _, other := range changed {
		il.TryGrant(other, tick)
	}
	return nil
}

// PartialRelease clears the conflicts of routeID that are confined to its
// first clearedSegments segments, once the occupying train's rear has
// passed a PARTIAL_RELEASE_POINT. Conflicting routes whose shared
// infrastructure lies entirely behind the release point become grantable
// while the train still occupies the head of the route. It reports whether
// any conflict was newly released.
func (il *Interlocking) PartialRelease(routeID model.RouteID, trainID model.TrainID, clearedSegments int, tick int64) (bool, error) {
	st, ok := il.states[routeID]
	if !ok {
		return false, stateErrorf("PartialRelease", "unknown route %q", routeID)
	}
	if st.occupiedBy != trainID {
		return false, stateErrorf("PartialRelease",
			"train %q partially released route %q occupied by %q", trainID, routeID, st.occupiedBy)
	}

	eligible := func(other model.RouteID) bool {
		last, ok := il.reg.LastConflictIndex(routeID, other)
		return ok && last < clearedSegments
	}
	changed := il.unblockConflicts(routeID, eligible)
	if len(changed) == 0 {
		return false, nil
	}

	il.metrics.IncPartialReleases()
	il.log.Info(context.Background(), "route partially released",
		logging.Tick(tick),
		logging.Train(string(trainID)),
		logging.Route(string(routeID)),
		logging.Int("cleared_segments", clearedSegments),
	)
	for _, other := range changed {
		il.TryGrant(other, tick)
	}
	return true, nil
}

// Withdraw cancels a train's interest in a route: a queued request is
// removed, an un-entered reservation is rolled back to FREE (with the usual
// unblock-and-regrant cascade). Withdrawing an occupied route is a state
// error; physical occupancy cannot be cancelled.
func (il *Interlocking) Withdraw(trainID model.TrainID, routeID model.RouteID, tick int64) error {
	st, ok := il.states[routeID]
	if !ok {
		return stateErrorf("Withdraw", "unknown route %q", routeID)
	}
	if st.occupiedBy == trainID {
		return stateErrorf("Withdraw", "train %q cannot withdraw occupied route %q", trainID, routeID)
	}

	if st.reservedFor == trainID {
		st.reservedFor = ""
		st.reservedReq = nil
		changed := il.unblockConflicts(routeID, nil)
		il.metrics.SetReserved(il.countReserved())
		il.log.Info(context.Background(), "reservation withdrawn",
			logging.Tick(tick), logging.Train(string(trainID)), logging.Route(string(routeID)))
		for _, other := range changed {
			il.TryGrant(other, tick)
		}
		// The freed route itself may have waiters.
		il.TryGrant(routeID, tick)
		return nil
	}

	for i, req := range st.queue {
		if req.TrainID == trainID {
			st.queue = slices.Delete(st.queue, i, i+1)
			il.metrics.AddQueued(-1)
			il.log.Debug(context.Background(), "queued request withdrawn",
				logging.Tick(tick), logging.Train(string(trainID)), logging.Route(string(routeID)),
				logging.String("request_id", req.ID.String()))
			return nil
		}
	}
	return stateErrorf("Withdraw", "train %q has no request or reservation for route %q", trainID, routeID)
}

// blockConflicts adds routeID to the blocked set of every conflicting route.
func (il *Interlocking) blockConflicts(routeID model.RouteID) {
	for _, other := range il.reg.ConflictingRoutes(routeID) {
		il.states[other].blockedBy[routeID] = true
	}
}

// unblockConflicts removes routeID from the blocked sets of its conflicting
// routes, restricted to those for which eligible returns true (nil means
// all). It returns the routes whose blocked set actually changed, in
// ascending order.
func (il *Interlocking) unblockConflicts(routeID model.RouteID, eligible func(model.RouteID) bool) []model.RouteID {
	var changed []model.RouteID
	for _, other := range il.reg.ConflictingRoutes(routeID) {
		if eligible != nil && !eligible(other) {
			continue
		}
		st := il.states[other]
		if st.blockedBy[routeID] {
			delete(st.blockedBy, routeID)
			changed = append(changed, other)
		}
	}
	return changed // ConflictingRoutes is already ascending
}

// OccupiedBy returns the train physically on the route, or "".
func (il *Interlocking) OccupiedBy(routeID model.RouteID) model.TrainID {
	if st, ok := il.states[routeID]; ok {
		return st.occupiedBy
	}
	return ""
}

// ReservedFor returns the train the route is reserved for, or "".
func (il *Interlocking) ReservedFor(routeID model.RouteID) model.TrainID {
	if st, ok := il.states[routeID]; ok {
		return st.reservedFor
	}
	return ""
}

// BlockedBy returns the conflicting routes currently blocking routeID, in
// ascending order.
func (il *Interlocking) BlockedBy(routeID model.RouteID) []model.RouteID {
	st, ok := il.states[routeID]
	if !ok {
		return nil
	}
	out := make([]model.RouteID, 0, len(st.blockedBy))
	for id := range st.blockedBy {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// QueuedRequests returns a copy of the route's FIFO queue.
func (il *Interlocking) QueuedRequests(routeID model.RouteID) []model.RouteRequest {
	st, ok := il.states[routeID]
	if !ok {
		return nil
	}
	return slices.Clone(st.queue)
}

// QueueLen returns the number of pending requests for the route.
func (il *Interlocking) QueueLen(routeID model.RouteID) int {
	if st, ok := il.states[routeID]; ok {
		return len(st.queue)
	}
	return 0
}

// HasPending reports whether the train has a queued request or an active
// reservation for the route. Occupancy does not count as pending.
func (il *Interlocking) HasPending(trainID model.TrainID, routeID model.RouteID) bool {
	st, ok := il.states[routeID]
	if !ok {
		return false
	}
	if st.reservedFor == trainID {
		return true
	}
	for _, req := range st.queue {
		if req.TrainID == trainID {
			return true
		}
	}
	return false
}

func (il *Interlocking) countOccupied() int {
	n := 0
	for _, st := range il.states {
		if st.occupiedBy != "" {
			n++
		}
	}
	return n
}

func (il *Interlocking) countReserved() int {
	n := 0
	for _, st := range il.states {
		if st.reservedFor != "" {
			n++
		}
	}
	return n
}
