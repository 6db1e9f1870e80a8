package core

import "math"

// kinematics implements constant-rate acceleration and braking for one
// train. Distances are metres, velocities m/s, time seconds. Acceleration
// and deceleration are both positive rates; anything beyond constant-rate
// physics is out of scope.
type kinematics struct {
	accel float64 // traction acceleration, m/s^2
	decel float64 // service braking deceleration, m/s^2
	vmax  float64 // train's own maximum speed, m/s
}

// brakingDistance returns the minimum distance needed to stop from v.
func (k kinematics) brakingDistance(v float64) float64 {
	if k.decel <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * k.decel)
}

// brakingDistanceTo returns the distance needed to slow from v to targetV,
// or 0 when no braking is required.
func (k kinematics) brakingDistanceTo(v, targetV float64) float64 {
	if k.decel <= 0 {
		return math.Inf(1)
	}
	if v <= targetV {
		return 0
	}
	return (v*v - targetV*targetV) / (2 * k.decel)
}

// velocityAfterBraking returns the speed reached after braking from v0
// over dist metres. Used when the movement authority grants less distance
// than the train proposed.
func (k kinematics) velocityAfterBraking(v0, dist float64) float64 {
	if k.decel <= 0 {
		return v0
	}
	return math.Sqrt(math.Max(0, v0*v0-2*k.decel*dist))
}

// accelerateStep advances toward targetV over dt seconds, cruising for the
// remainder of the step once targetV is reached. Returns distance travelled
// and the new speed.
func (k kinematics) accelerateStep(v, targetV, dt float64) (float64, float64) {
	if k.accel <= 0 || v >= targetV {
		return targetV * dt, targetV
	}
	tToTarget := (targetV - v) / k.accel
	if tToTarget <= dt {
		s1 := v*tToTarget + 0.5*k.accel*tToTarget*tToTarget
		s2 := targetV * (dt - tToTarget)
		return s1 + s2, targetV
	}
	return v*dt + 0.5*k.accel*dt*dt, v + k.accel*dt
}

// brakeStep slows toward targetV (>= 0) over dt seconds, cruising for the
// remainder once targetV is reached. Returns distance travelled and the new
// speed.
func (k kinematics) brakeStep(v, targetV, dt float64) (float64, float64) {
	if k.decel <= 0 || v <= targetV {
		return targetV * dt, targetV
	}
	tToTarget := (v - targetV) / k.decel
	if tToTarget <= dt {
		s1 := v*tToTarget - 0.5*k.decel*tToTarget*tToTarget
		s2 := targetV * (dt - tToTarget)
		return math.Max(0, s1) + s2, targetV
	}
	return math.Max(0, v*dt-0.5*k.decel*dt*dt), v - k.decel*dt
}
