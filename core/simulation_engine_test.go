package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signalsfoundry/interlocking-simulator/model"
)

func TestEngineAssignsRunID(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, []model.Train{lineTrain("t1")})

	if se.RunID() == "" {
		t.Fatal("RunID is empty")
	}

	other := newSim(t, reg, []model.Train{lineTrain("t1")})
	if se.RunID() == other.RunID() {
		t.Fatal("two engines share one run ID")
	}
}

func TestEngineTickAdvancesPerStep(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, []model.Train{lineTrain("t1")})

	if got := se.Tick(); got != 0 {
		t.Fatalf("initial Tick = %d, want 0", got)
	}
	snap := se.Step()
	if snap.Tick != 0 {
		t.Fatalf("first snapshot tick = %d, want 0", snap.Tick)
	}
	if got := se.Tick(); got != 1 {
		t.Fatalf("Tick after one step = %d, want 1", got)
	}
}

func TestEngineSnapshotIsDetached(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, []model.Train{lineTrain("t1")})

	first := se.Step()
	// Mutating an old snapshot must not leak into later ones.
	first.Trains[0].SpeedMPS = 999
	first.Routes[0].OccupiedBy = "intruder"

	second := se.Step()
	ts, _ := second.Train("t1")
	if ts.SpeedMPS == 999 {
		t.Fatal("snapshot aliases tracker state")
	}
	rs, _ := second.Route("r1")
	if rs.OccupiedBy == "intruder" {
		t.Fatal("snapshot aliases interlocking state")
	}
}

func TestEngineSnapshotListsRoutesInOrder(t *testing.T) {
	reg := stationFixture(t)
	se := newSim(t, reg, nil)

	snap := se.Step()

	var got []model.RouteID
	for _, rs := range snap.Routes {
		got = append(got, rs.ID)
	}
	want := []model.RouteID{"inbound_p1", "inbound_p2", "outbound_p1", "outbound_p2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("route order mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineTickListenersReceiveEverySnapshot(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, []model.Train{lineTrain("t1")})

	var ticks []int64
	se.RegisterTickListener(func(snap SimulationSnapshot) { ticks = append(ticks, snap.Tick) })

	se.Run(3)

	if diff := cmp.Diff([]int64{0, 1, 2}, ticks); diff != "" {
		t.Fatalf("listener ticks mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineFinished(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, []model.Train{lineTrain("t1")})

	if se.Finished() {
		t.Fatal("engine finished before the first tick")
	}
	stepUntilFinished(t, se, 200)
	if !se.Finished() {
		t.Fatal("engine not finished after the train completed")
	}
}

func TestEngineWithNoTrainsIsImmediatelyFinished(t *testing.T) {
	reg := lineFixture(t, 10)
	se := newSim(t, reg, nil)

	if !se.Finished() {
		t.Fatal("empty simulation not reported as finished")
	}
}
