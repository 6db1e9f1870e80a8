package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

// Scenario is the validated, immutable result of loading a scenario file:
// everything the simulation needs before the first tick.
type Scenario struct {
	Topology *Topology
	Registry *Registry
	Trains   []model.Train
}

// ScenarioSummary is a small summary of what was loaded, mainly useful for
// logging from main().
type ScenarioSummary struct {
	Nodes    int
	Segments int
	Routes   int
	Trains   int
}

// internal JSON shapes - kept unexported so they can evolve freely.
type scenarioJSON struct {
	Nodes    []nodeJSON    `json:"nodes"`
	Segments []segmentJSON `json:"segments"`
	Routes   []routeJSON   `json:"routes"`
	Trains   []trainJSON   `json:"trains"`
}

type nodeJSON struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"` // signal | switch | track_end | partial_release
	PositionKm float64 `json:"position_km"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

type segmentJSON struct {
	ID            string  `json:"id"`
	NodeA         string  `json:"node_a"`
	NodeB         string  `json:"node_b"`
	LengthM       float64 `json:"length_m"`
	SpeedLimitMPS float64 `json:"speed_limit_mps"`
}

type routeJSON struct {
	ID       string   `json:"id"`
	Segments []string `json:"segments"`
	FromNode string   `json:"from_node"`
	ToNode   string   `json:"to_node"`
	LengthM  float64  `json:"length_m"` // optional; derived when zero
}

type scheduleEntryJSON struct {
	Route       string `json:"route"`
	Destination string `json:"destination"`
	Arrival     *int64 `json:"arrival"`
	Departure   *int64 `json:"departure"`
}

type trainJSON struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	LengthM     float64             `json:"length_m"`
	MaxSpeedMPS float64             `json:"max_speed_mps"`
	AccelMPS2   float64             `json:"accel_mps2"`
	DecelMPS2   float64             `json:"decel_mps2"`
	Schedule    []scheduleEntryJSON `json:"schedule"`
}

// LoadScenario reads a JSON scenario from r, validates it, and builds the
// immutable topology and route registry plus the train list. Any
// structural or configuration problem fails the load; a simulation never
// starts on a malformed scenario.
func LoadScenario(r io.Reader) (*Scenario, ScenarioSummary, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, ScenarioSummary{}, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	nodes := make([]model.Node, 0, len(payload.Nodes))
	for _, jn := range payload.Nodes {
		kind, err := nodeKindFromString(jn.Kind)
		if err != nil {
			return nil, ScenarioSummary{}, configErrorf(jn.ID, "%v", err)
		}
		nodes = append(nodes, model.Node{
			ID:         model.NodeID(jn.ID),
			Kind:       kind,
			PositionKm: jn.PositionKm,
			DisplayX:   jn.X,
			DisplayY:   jn.Y,
		})
	}

	segments := make([]model.TrackSegment, 0, len(payload.Segments))
	for _, js := range payload.Segments {
		segments = append(segments, model.TrackSegment{
			ID:            model.SegmentID(js.ID),
			NodeA:         model.NodeID(js.NodeA),
			NodeB:         model.NodeID(js.NodeB),
			LengthM:       js.LengthM,
			SpeedLimitMPS: js.SpeedLimitMPS,
		})
	}

	topo, err := NewTopology(nodes, segments)
	if err != nil {
		return nil, ScenarioSummary{}, err
	}

	routes := make([]model.RouteDefinition, 0, len(payload.Routes))
	for _, jr := range payload.Routes {
		segs := make([]model.SegmentID, 0, len(jr.Segments))
		for _, s := range jr.Segments {
			segs = append(segs, model.SegmentID(s))
		}
		routes = append(routes, model.RouteDefinition{
			ID:       model.RouteID(jr.ID),
			Segments: segs,
			FromNode: model.NodeID(jr.FromNode),
			ToNode:   model.NodeID(jr.ToNode),
			LengthM:  jr.LengthM,
		})
	}

	registry, err := NewRegistry(topo, routes)
	if err != nil {
		return nil, ScenarioSummary{}, err
	}

	trains := make([]model.Train, 0, len(payload.Trains))
	for _, jt := range payload.Trains {
		schedule := make([]model.ScheduleEntry, 0, len(jt.Schedule))
		for _, je := range jt.Schedule {
			schedule = append(schedule, model.ScheduleEntry{
				RouteID:          model.RouteID(je.Route),
				DestinationNode:  model.NodeID(je.Destination),
				PlannedArrival:   je.Arrival,
				PlannedDeparture: je.Departure,
			})
		}
		trains = append(trains, model.Train{
			ID:          model.TrainID(jt.ID),
			Type:        jt.Type,
			LengthM:     jt.LengthM,
			MaxSpeedMPS: jt.MaxSpeedMPS,
			AccelMPS2:   jt.AccelMPS2,
			DecelMPS2:   jt.DecelMPS2,
			Schedule:    schedule,
		})
	}

	summary := ScenarioSummary{
		Nodes:    len(nodes),
		Segments: len(segments),
		Routes:   len(routes),
		Trains:   len(trains),
	}
	return &Scenario{Topology: topo, Registry: registry, Trains: trains}, summary, nil
}

// nodeKindFromString maps the JSON "kind" string to a NodeKind. Unlike
// display-only attributes, an unknown kind is a configuration error, not
// something to guess at.
func nodeKindFromString(s string) (model.NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "signal":
		return model.NodeSignal, nil
	case "switch", "point":
		return model.NodeSwitch, nil
	case "track_end", "buffer_stop":
		return model.NodeTrackEnd, nil
	case "partial_release", "release_point":
		return model.NodePartialRelease, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}
