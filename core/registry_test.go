package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

func TestRegistryConflictRelationIsSymmetricAndIrreflexive(t *testing.T) {
	reg := stationFixture(t)

	for _, a := range reg.RouteIDs() {
		if reg.InConflict(a, a) {
			t.Fatalf("route %s conflicts with itself", a)
		}
		for _, b := range reg.RouteIDs() {
			if reg.InConflict(a, b) != reg.InConflict(b, a) {
				t.Fatalf("conflict relation asymmetric for (%s, %s)", a, b)
			}
		}
	}
}

func TestRegistrySharedSegmentsConflict(t *testing.T) {
	reg := stationFixture(t)

	if !reg.InConflict("inbound_p1", "inbound_p2") {
		t.Fatal("inbound routes share the approach but do not conflict")
	}
	if !reg.InConflict("outbound_p1", "outbound_p2") {
		t.Fatal("outbound routes share the mainline but do not conflict")
	}
}

func TestRegistryDisjointRoutesDoNotConflict(t *testing.T) {
	reg := stationFixture(t)

	got := reg.ConflictingRoutes("inbound_p1")
	want := []model.RouteID{"inbound_p2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ConflictingRoutes(inbound_p1) mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistrySwitchHeelConflictExtent(t *testing.T) {
	reg := stationFixture(t)

	// The inbound routes diverge at jct_west: beyond the shared approach,
	// the switch itself is implicated, so the extent reaches the segment
	// leaving the switch (index 2).
	got, ok := reg.LastConflictIndex("inbound_p1", "inbound_p2")
	if !ok || got != 2 {
		t.Fatalf("LastConflictIndex(inbound_p1, inbound_p2) = %d, %v; want 2, true", got, ok)
	}

	// The outbound routes converge at jct_east and share the mainline
	// (index 1 on both).
	got, ok = reg.LastConflictIndex("outbound_p1", "outbound_p2")
	if !ok || got != 1 {
		t.Fatalf("LastConflictIndex(outbound_p1, outbound_p2) = %d, %v; want 1, true", got, ok)
	}

	if _, ok := reg.LastConflictIndex("inbound_p1", "outbound_p2"); ok {
		t.Fatal("LastConflictIndex reported a conflict for disjoint routes")
	}
}

func TestRegistryReleasePrefixes(t *testing.T) {
	reg := stationFixture(t)

	got := reg.ReleasePrefixes("inbound_p1")
	want := []int{1, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ReleasePrefixes(inbound_p1) mismatch (-want +got):\n%s", diff)
	}

	if got := reg.ReleasePrefixes("outbound_p1"); len(got) != 0 {
		t.Fatalf("ReleasePrefixes(outbound_p1) = %v, want none", got)
	}
}

func TestRegistryNodeChain(t *testing.T) {
	reg := stationFixture(t)

	got := reg.NodeChain("inbound_p1")
	want := []model.NodeID{"entry", "rel_approach", "jct_west", "rel_plat1", "plat1_east"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NodeChain(inbound_p1) mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryNormalisesRouteLength(t *testing.T) {
	reg := stationFixture(t)

	def, ok := reg.Route("inbound_p1")
	if !ok {
		t.Fatal("Route(inbound_p1) missing")
	}
	if def.LengthM != 1200 {
		t.Fatalf("LengthM = %f, want 1200 (sum of segments)", def.LengthM)
	}
}

func TestRegistryRejectsNonContiguousChain(t *testing.T) {
	reg := lineFixture(t, 10)
	topo := reg.topo

	_, err := NewRegistry(topo, []model.RouteDefinition{
		{ID: "bad", Segments: []model.SegmentID{"s2", "s1"}, FromNode: "start", ToNode: "stop"},
	})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewRegistry error = %v, want ConfigurationError", err)
	}
}

func TestRegistryRejectsWrongEndNode(t *testing.T) {
	reg := lineFixture(t, 10)

	_, err := NewRegistry(reg.topo, []model.RouteDefinition{
		{ID: "bad", Segments: []model.SegmentID{"s1"}, FromNode: "start", ToNode: "stop"},
	})
	if err == nil {
		t.Fatal("NewRegistry accepted a chain ending at the wrong node")
	}
}

func TestRegistryRejectsDeclaredLengthMismatch(t *testing.T) {
	reg := lineFixture(t, 10)

	_, err := NewRegistry(reg.topo, []model.RouteDefinition{
		{ID: "bad", Segments: []model.SegmentID{"s1"}, FromNode: "start", ToNode: "mid", LengthM: 150},
	})
	if err == nil {
		t.Fatal("NewRegistry accepted a declared length 50m off the segment sum")
	}
}
