package model

import "github.com/google/uuid"

// RouteID identifies a route (Fahrstrasse), e.g. "fs_sig42_sig45_via_w12a".
type RouteID string

// RouteDefinition is the static half of a route: a secured, directed path
// for one train from a start signal to a destination signal, made of an
// ordered chain of track segments. The segments themselves are undirected;
// the order of the chain gives the direction of travel. All dynamic route
// state (occupancy, reservation, blocking, queued requests) is owned by the
// interlocking engine and never stored here.
type RouteDefinition struct {
	ID RouteID

	// Segments is the ordered chain of track segments forming the route.
	Segments []SegmentID

	// FromNode and ToNode are the boundary nodes, typically signals.
	FromNode NodeID
	ToNode   NodeID

	// LengthM is the total route length in metres, the sum of the segment
	// lengths.
	LengthM float64
}

// RouteRequest is a train's request to have a route set for it. Immutable
// once created. Requests queue per route in FIFO order by tick, ties broken
// by insertion order.
type RouteRequest struct {
	// ID identifies this request, e.g. for withdrawing it before a grant.
	ID uuid.UUID

	TrainID TrainID
	RouteID RouteID

	// Tick is the simulation tick at which the request was created.
	Tick int64
}
