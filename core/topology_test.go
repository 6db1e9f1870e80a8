package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

func TestNewTopologyRejectsUnknownEndpoint(t *testing.T) {
	nodes := []model.Node{{ID: "a", Kind: model.NodeSignal}}
	segments := []model.TrackSegment{
		{ID: "s", NodeA: "a", NodeB: "ghost", LengthM: 100, SpeedLimitMPS: 10},
	}

	_, err := NewTopology(nodes, segments)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewTopology error = %v, want ConfigurationError", err)
	}
}

func TestNewTopologyRejectsSelfLoop(t *testing.T) {
	nodes := []model.Node{{ID: "a", Kind: model.NodeSwitch}}
	segments := []model.TrackSegment{
		{ID: "s", NodeA: "a", NodeB: "a", LengthM: 100, SpeedLimitMPS: 10},
	}

	if _, err := NewTopology(nodes, segments); err == nil {
		t.Fatal("NewTopology accepted a segment looping on one node")
	}
}

func TestNewTopologyRejectsNonPositiveLength(t *testing.T) {
	nodes := []model.Node{
		{ID: "a", Kind: model.NodeSignal},
		{ID: "b", Kind: model.NodeSignal},
	}
	segments := []model.TrackSegment{
		{ID: "s", NodeA: "a", NodeB: "b", LengthM: 0, SpeedLimitMPS: 10},
	}

	if _, err := NewTopology(nodes, segments); err == nil {
		t.Fatal("NewTopology accepted a zero-length segment")
	}
}

func TestNewTopologyRejectsDuplicateIDs(t *testing.T) {
	nodes := []model.Node{
		{ID: "a", Kind: model.NodeSignal},
		{ID: "a", Kind: model.NodeSignal},
	}

	if _, err := NewTopology(nodes, nil); err == nil {
		t.Fatal("NewTopology accepted duplicate node ids")
	}
}

func TestSegmentsAtListsTouchingSegments(t *testing.T) {
	nodes := []model.Node{
		{ID: "a", Kind: model.NodeSignal},
		{ID: "b", Kind: model.NodeSwitch},
		{ID: "c", Kind: model.NodeSignal},
	}
	segments := []model.TrackSegment{
		{ID: "s1", NodeA: "a", NodeB: "b", LengthM: 100, SpeedLimitMPS: 10},
		{ID: "s2", NodeA: "b", NodeB: "c", LengthM: 100, SpeedLimitMPS: 10},
	}

	topo, err := NewTopology(nodes, segments)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}

	got := topo.SegmentsAt("b")
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("SegmentsAt(b) = %v, want [s1 s2]", got)
	}
	if got := topo.SegmentsAt("a"); len(got) != 1 {
		t.Fatalf("SegmentsAt(a) = %v, want one segment", got)
	}
}

func TestSegmentFarWalksBothDirections(t *testing.T) {
	seg := model.TrackSegment{ID: "s", NodeA: "a", NodeB: "b"}

	if far, ok := seg.Far("a"); !ok || far != "b" {
		t.Fatalf("Far(a) = %q, %v; want b, true", far, ok)
	}
	if far, ok := seg.Far("b"); !ok || far != "a" {
		t.Fatalf("Far(b) = %q, %v; want a, true", far, ok)
	}
	if _, ok := seg.Far("c"); ok {
		t.Fatal("Far(c) succeeded for a node off the segment")
	}
}
