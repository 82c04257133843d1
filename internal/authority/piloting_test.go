package authority

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
)

func TestApplyPilotInputScalesThrustIntoAcceleration(t *testing.T) {
	in := PilotInput{ThrustY: 2}
	accel, _ := ApplyPilotInput(in, vec.Vec3Float{}, true)
	if accel.Y != 2*ThrustAccelScale {
		t.Fatalf("expected thrust to scale linearly into Y acceleration, got %+v", accel)
	}
}

func TestApplyPilotInputSetsAngularVelocityFromYaw(t *testing.T) {
	in := PilotInput{RotationYaw: 1.5}
	_, angular := ApplyPilotInput(in, vec.Vec3Float{}, true)
	if angular.Y != 1.5*YawAngularVelScale {
		t.Fatalf("expected yaw input to set angular velocity directly, got %+v", angular)
	}
}

func TestApplyPilotInputDampsWithoutYawInput(t *testing.T) {
	prev := vec.Vec3Float{Y: 10}
	_, angular := ApplyPilotInput(PilotInput{}, prev, false)
	want := prev.Y * AngularDampingPerTick
	if angular.Y != want {
		t.Fatalf("expected angular velocity damped when no yaw input present, got %f want %f", angular.Y, want)
	}
}

func TestApplyPilotInputHeldNeutralYawSkipsDamping(t *testing.T) {
	prev := vec.Vec3Float{Y: 10}
	_, angular := ApplyPilotInput(PilotInput{RotationYaw: 0}, prev, true)
	if angular.Y != 0 {
		t.Fatalf("expected an explicit zero-yaw input to set angular velocity to 0 (not damp), got %f", angular.Y)
	}
}

func TestDampLinearVelocityAppliesPerTickFactor(t *testing.T) {
	v := vec.Vec3Float{X: 10}
	damped := DampLinearVelocity(v)
	if damped.X != 10*LinearDampingPerTick {
		t.Fatalf("expected linear damping factor applied, got %f", damped.X)
	}
}

func TestPilotFSMStartsIdle(t *testing.T) {
	fsm := NewPilotFSM(10)
	if fsm.State() != PilotIdle {
		t.Fatal("expected a fresh PilotFSM to start idle")
	}
}

func TestPilotFSMOnInputActivates(t *testing.T) {
	fsm := NewPilotFSM(10)
	fsm.OnInput()
	if fsm.State() != PilotActive {
		t.Fatal("expected OnInput to transition to PilotActive")
	}
}

func TestPilotFSMRevertsToIdleAfterTimeout(t *testing.T) {
	fsm := NewPilotFSM(3)
	fsm.OnInput()
	for i := 0; i < 3; i++ {
		if fsm.State() != PilotActive {
			t.Fatalf("expected still active at tick %d", i)
		}
		fsm.Tick()
	}
	if fsm.State() != PilotIdle {
		t.Fatal("expected FSM to revert to idle once the timeout elapses")
	}
}

func TestPilotFSMInputResetsIdleCountdown(t *testing.T) {
	fsm := NewPilotFSM(3)
	fsm.OnInput()
	fsm.Tick()
	fsm.Tick()
	fsm.OnInput() // reset countdown before it would have expired
	fsm.Tick()
	fsm.Tick()
	if fsm.State() != PilotActive {
		t.Fatal("expected OnInput to reset the idle countdown, keeping the FSM active")
	}
}

func TestPilotFSMTickNoOpWhenIdle(t *testing.T) {
	fsm := NewPilotFSM(3)
	fsm.Tick()
	fsm.Tick()
	if fsm.State() != PilotIdle {
		t.Fatal("expected Tick on an already-idle FSM to remain idle")
	}
}
