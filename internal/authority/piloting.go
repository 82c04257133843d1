package authority

import "github.com/skyforge-mmo/skyforge/internal/vec"

// PilotingConstants are the server-authoritative response to a
// PilotingInput message: vertical thrust scales directly into linear
// acceleration, yaw input scales into angular velocity, and both decay
// toward rest every tick the pilot stops providing input (spec.md §4.F).
const (
	ThrustAccelScale    = 5.0
	YawAngularVelScale  = 1.0
	LinearDampingPerTick  = 0.98
	AngularDampingPerTick = 0.9
)

// PilotInput is the decoded, server-trusted form of protocol.PilotingInput.
type PilotInput struct {
	ThrustY       float64
	RotationPitch float64
	RotationYaw   float64
	RotationRoll  float64
}

// ApplyPilotInput computes the next linear acceleration and angular
// velocity for a piloted island from one tick's input. hasYawInput
// distinguishes "no yaw command this tick" (apply angular damping) from
// "explicit zero yaw" — a held-neutral stick still counts as input and
// skips damping, matching the original's idle/piloted transition logic.
func ApplyPilotInput(in PilotInput, prevAngularVel vec.Vec3Float, hasYawInput bool) (linearAccel, angularVel vec.Vec3Float) {
	linearAccel = vec.Vec3Float{Y: in.ThrustY * ThrustAccelScale}

	angularVel = prevAngularVel
	if hasYawInput {
		angularVel.Y = in.RotationYaw * YawAngularVelScale
	} else {
		angularVel = angularVel.Mul(AngularDampingPerTick)
	}
	return linearAccel, angularVel
}

// DampLinearVelocity applies the per-tick linear damping used while an
// island is idle (no thrust input), so a piloted island coasts to rest
// instead of drifting forever.
func DampLinearVelocity(v vec.Vec3Float) vec.Vec3Float {
	return v.Mul(LinearDampingPerTick)
}

// PilotState is the per-island idle/piloted state machine (spec.md §4.F).
type PilotState int

const (
	PilotIdle PilotState = iota
	PilotActive
)

// PilotFSM tracks one island's piloting state and the tick count since the
// last input, so a pilot who disconnects without an explicit "stop"
// message eventually returns the island to idle.
type PilotFSM struct {
	state           PilotState
	ticksSinceInput int
	idleTimeoutTicks int
}

// NewPilotFSM returns a PilotFSM that reverts to idle after idleTimeoutTicks
// ticks with no input (e.g. 120 ticks at 60Hz = 2 seconds).
func NewPilotFSM(idleTimeoutTicks int) *PilotFSM {
	return &PilotFSM{idleTimeoutTicks: idleTimeoutTicks}
}

// OnInput transitions to PilotActive and resets the idle countdown.
func (f *PilotFSM) OnInput() {
	f.state = PilotActive
	f.ticksSinceInput = 0
}

// Tick advances the idle countdown by one tick, reverting to PilotIdle if
// the timeout has elapsed.
func (f *PilotFSM) Tick() {
	if f.state != PilotActive {
		return
	}
	f.ticksSinceInput++
	if f.ticksSinceInput >= f.idleTimeoutTicks {
		f.state = PilotIdle
	}
}

// State returns the current idle/piloted state.
func (f *PilotFSM) State() PilotState { return f.state }
