package core

import (
	"testing"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

// stationFixture builds a small two-platform station: a shared approach
// with a release point, a west switch fanning out to two platform tracks
// (each with its own release point), and a shared exit line behind the
// east switch.
//
//	entry --approach_1-- rel_approach --approach_2-- jct_west
//	  jct_west --plat1_a-- rel_plat1 --plat1_b-- plat1_east --exit_1--+
//	  jct_west --plat2_a-- rel_plat2 --plat2_b-- plat2_east --exit_2--+-- jct_east --mainline_east-- east_end
func stationFixture(t *testing.T) *Registry {
	t.Helper()

	nodes := []model.Node{
		{ID: "entry", Kind: model.NodeSignal},
		{ID: "rel_approach", Kind: model.NodePartialRelease},
		{ID: "jct_west", Kind: model.NodeSwitch},
		{ID: "rel_plat1", Kind: model.NodePartialRelease},
		{ID: "rel_plat2", Kind: model.NodePartialRelease},
		{ID: "plat1_east", Kind: model.NodeSignal},
		{ID: "plat2_east", Kind: model.NodeSignal},
		{ID: "jct_east", Kind: model.NodeSwitch},
		{ID: "east_end", Kind: model.NodeTrackEnd},
	}
	segments := []model.TrackSegment{
		{ID: "approach_1", NodeA: "entry", NodeB: "rel_approach", LengthM: 500, SpeedLimitMPS: 33.3},
		{ID: "approach_2", NodeA: "rel_approach", NodeB: "jct_west", LengthM: 300, SpeedLimitMPS: 33.3},
		{ID: "plat1_a", NodeA: "jct_west", NodeB: "rel_plat1", LengthM: 100, SpeedLimitMPS: 16.7},
		{ID: "plat1_b", NodeA: "rel_plat1", NodeB: "plat1_east", LengthM: 300, SpeedLimitMPS: 16.7},
		{ID: "plat2_a", NodeA: "jct_west", NodeB: "rel_plat2", LengthM: 100, SpeedLimitMPS: 16.7},
		{ID: "plat2_b", NodeA: "rel_plat2", NodeB: "plat2_east", LengthM: 300, SpeedLimitMPS: 16.7},
		{ID: "exit_1", NodeA: "plat1_east", NodeB: "jct_east", LengthM: 200, SpeedLimitMPS: 16.7},
		{ID: "exit_2", NodeA: "plat2_east", NodeB: "jct_east", LengthM: 200, SpeedLimitMPS: 16.7},
		{ID: "mainline_east", NodeA: "jct_east", NodeB: "east_end", LengthM: 800, SpeedLimitMPS: 33.3},
	}
	routes := []model.RouteDefinition{
		{ID: "inbound_p1", Segments: []model.SegmentID{"approach_1", "approach_2", "plat1_a", "plat1_b"}, FromNode: "entry", ToNode: "plat1_east"},
		{ID: "inbound_p2", Segments: []model.SegmentID{"approach_1", "approach_2", "plat2_a", "plat2_b"}, FromNode: "entry", ToNode: "plat2_east"},
		{ID: "outbound_p1", Segments: []model.SegmentID{"exit_1", "mainline_east"}, FromNode: "plat1_east", ToNode: "east_end"},
		{ID: "outbound_p2", Segments: []model.SegmentID{"exit_2", "mainline_east"}, FromNode: "plat2_east", ToNode: "east_end"},
	}

	topo, err := NewTopology(nodes, segments)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	reg, err := NewRegistry(topo, routes)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// lineFixture builds a plain three-node line with two consecutive routes:
// start --s1 (100m)-- mid --s2 (100m)-- stop.
func lineFixture(t *testing.T, limit float64) *Registry {
	t.Helper()

	nodes := []model.Node{
		{ID: "start", Kind: model.NodeSignal},
		{ID: "mid", Kind: model.NodeSignal},
		{ID: "stop", Kind: model.NodeTrackEnd},
	}
	segments := []model.TrackSegment{
		{ID: "s1", NodeA: "start", NodeB: "mid", LengthM: 100, SpeedLimitMPS: limit},
		{ID: "s2", NodeA: "mid", NodeB: "stop", LengthM: 100, SpeedLimitMPS: limit},
	}
	routes := []model.RouteDefinition{
		{ID: "r1", Segments: []model.SegmentID{"s1"}, FromNode: "start", ToNode: "mid"},
		{ID: "r2", Segments: []model.SegmentID{"s2"}, FromNode: "mid", ToNode: "stop"},
	}

	topo, err := NewTopology(nodes, segments)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	reg, err := NewRegistry(topo, routes)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}
