package core

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBrakingDistance(t *testing.T) {
	k := kinematics{accel: 1, decel: 1, vmax: 10}

	if got := k.brakingDistance(10); !almostEqual(got, 50) {
		t.Fatalf("brakingDistance(10) = %f, want 50", got)
	}
	if got := k.brakingDistance(0); !almostEqual(got, 0) {
		t.Fatalf("brakingDistance(0) = %f, want 0", got)
	}
}

func TestBrakingDistanceToTarget(t *testing.T) {
	k := kinematics{accel: 1, decel: 2, vmax: 20}

	// (10^2 - 6^2) / (2*2) = 16
	if got := k.brakingDistanceTo(10, 6); !almostEqual(got, 16) {
		t.Fatalf("brakingDistanceTo(10, 6) = %f, want 16", got)
	}
	if got := k.brakingDistanceTo(5, 8); !almostEqual(got, 0) {
		t.Fatalf("brakingDistanceTo below target = %f, want 0", got)
	}
}

func TestAccelerateStepMidStepTransition(t *testing.T) {
	k := kinematics{accel: 2, decel: 1, vmax: 10}

	// From 8 m/s to 10 m/s takes 1s of a 2s step; the remaining second
	// cruises at 10 m/s: 8+1 + 10 = 19 m.
	dist, v := k.accelerateStep(8, 10, 2)
	if !almostEqual(v, 10) {
		t.Fatalf("speed = %f, want 10", v)
	}
	if !almostEqual(dist, 19) {
		t.Fatalf("distance = %f, want 19", dist)
	}
}

func TestAccelerateStepWithinStep(t *testing.T) {
	k := kinematics{accel: 1, decel: 1, vmax: 10}

	dist, v := k.accelerateStep(0, 10, 1)
	if !almostEqual(v, 1) || !almostEqual(dist, 0.5) {
		t.Fatalf("accelerateStep(0, 10, 1) = (%f, %f), want (0.5, 1)", dist, v)
	}
}

func TestBrakeStepReachesStandstill(t *testing.T) {
	k := kinematics{accel: 1, decel: 1, vmax: 10}

	// From 2 m/s, stopping takes 2s of a 4s step; distance 2*2 - 0.5*4 = 2.
	dist, v := k.brakeStep(2, 0, 4)
	if !almostEqual(v, 0) {
		t.Fatalf("speed = %f, want 0", v)
	}
	if !almostEqual(dist, 2) {
		t.Fatalf("distance = %f, want 2", dist)
	}
}

func TestBrakeStepToLowerLimitThenCruise(t *testing.T) {
	k := kinematics{accel: 1, decel: 2, vmax: 20}

	// 10 -> 6 m/s takes 2s of a 3s step: 10*2 - 0.5*2*4 = 16, then 6m
	// cruising. Total 22.
	dist, v := k.brakeStep(10, 6, 3)
	if !almostEqual(v, 6) {
		t.Fatalf("speed = %f, want 6", v)
	}
	if !almostEqual(dist, 22) {
		t.Fatalf("distance = %f, want 22", dist)
	}
}

func TestVelocityAfterBraking(t *testing.T) {
	k := kinematics{accel: 1, decel: 2, vmax: 20}

	// v^2 = 10^2 - 2*2*16 = 36
	if got := k.velocityAfterBraking(10, 16); !almostEqual(got, 6) {
		t.Fatalf("velocityAfterBraking(10, 16) = %f, want 6", got)
	}
	if got := k.velocityAfterBraking(10, 1000); !almostEqual(got, 0) {
		t.Fatalf("velocityAfterBraking over-long = %f, want 0", got)
	}
}

func TestZeroDecelNeverStops(t *testing.T) {
	k := kinematics{accel: 1, decel: 0, vmax: 10}

	if got := k.brakingDistance(5); !math.IsInf(got, 1) {
		t.Fatalf("brakingDistance with no brakes = %f, want +Inf", got)
	}
}
