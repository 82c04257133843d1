package physics

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
)

// solidSet builds a VoxelQuery backed by a fixed set of solid voxel
// coordinates, standing in for a real World/Island.
func solidSet(voxels ...vec.Vec3) VoxelQuery {
	set := make(map[vec.Vec3]struct{}, len(voxels))
	for _, v := range voxels {
		set[v] = struct{}{}
	}
	return func(p vec.Vec3) bool {
		_, ok := set[p]
		return ok
	}
}

func TestResolveCapsuleMovementStopsAtFloor(t *testing.T) {
	floor := make([]vec.Vec3, 0, 25)
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			floor = append(floor, vec.Vec3{X: x, Y: -1, Z: z})
		}
	}
	r := NewResolver(solidSet(floor...))
	capsule := Capsule{Radius: 0.4, Height: 1.8}

	pos := vec.Vec3Float{Y: 0.05}
	newPos, blocked := r.ResolveCapsuleMovement(pos, capsule, vec.Vec3Float{Y: -1})
	if !blocked[1] {
		t.Fatal("expected Y movement into the floor to be blocked")
	}
	if newPos.Y < 0 {
		t.Fatalf("expected capsule to be halted above the floor, got Y=%f", newPos.Y)
	}
}

func TestResolveCapsuleMovementFreeFallUnblocked(t *testing.T) {
	r := NewResolver(solidSet()) // no geometry anywhere
	capsule := Capsule{Radius: 0.4, Height: 1.8}

	pos := vec.Vec3Float{Y: 10}
	newPos, blocked := r.ResolveCapsuleMovement(pos, capsule, vec.Vec3Float{Y: -1})
	if blocked[1] {
		t.Fatal("expected unobstructed fall to be unblocked")
	}
	if newPos.Y != 9 {
		t.Fatalf("expected Y to advance by the full delta, got %f", newPos.Y)
	}
}

func TestResolveCapsuleMovementStepsUpACurb(t *testing.T) {
	// A single-voxel curb directly ahead in +X, one voxel tall, with open
	// space above it. A one-voxel-tall obstacle requires a step ratio that
	// lifts the capsule past a full voxel height, so raise it above the
	// default for this fixture.
	r := NewResolver(solidSet(
		vec.Vec3{X: 1, Y: 0, Z: 0},
		vec.Vec3{X: -1, Y: -1, Z: 0}, vec.Vec3{X: 0, Y: -1, Z: 0}, vec.Vec3{X: 1, Y: -1, Z: 0}, vec.Vec3{X: 2, Y: -1, Z: 0},
	))
	r.StepHeightRatio = 0.65
	capsule := Capsule{Radius: 0.3, Height: 1.8}
	// Start with the capsule's +X edge (0.95) just short of the curb, so
	// every halved substep of the move hits it and step-up has to run.
	pos := vec.Vec3Float{X: 0.65, Y: 0.05, Z: 0}

	newPos, blocked := r.ResolveCapsuleMovement(pos, capsule, vec.Vec3Float{X: 1})
	if blocked[0] {
		t.Fatalf("expected the step-up to clear the curb, got blocked with pos %+v", newPos)
	}
	if newPos.X <= pos.X {
		t.Fatal("expected forward progress after stepping up")
	}
}

func TestResolveCapsuleMovementBlockedByTallWall(t *testing.T) {
	wall := make([]vec.Vec3, 0, 10)
	for y := 0; y < 5; y++ {
		wall = append(wall, vec.Vec3{X: 1, Y: y, Z: 0})
	}
	r := NewResolver(solidSet(wall...))
	capsule := Capsule{Radius: 0.3, Height: 1.8}
	// Start with the capsule's +X edge (0.95) just short of the wall, so
	// every halved substep of the move hits it.
	pos := vec.Vec3Float{X: 0.65, Y: 0.05, Z: 0}

	newPos, blocked := r.ResolveCapsuleMovement(pos, capsule, vec.Vec3Float{X: 0.5})
	if !blocked[0] {
		t.Fatalf("expected a wall too tall to step up over to remain blocked, got %+v", newPos)
	}
}

func TestUnembedPushesOutOfSolidGeometry(t *testing.T) {
	// A single solid voxel at Y=0 only, open again at Y=1 and above. Start
	// already close to the top of the voxel so the push cap is enough to
	// fully clear it.
	r := NewResolver(solidSet(vec.Vec3{X: 0, Y: 0, Z: 0}))
	capsule := Capsule{Radius: 0.05, Height: 0.2}
	stuck := vec.Vec3Float{X: 0, Y: 0.5, Z: 0}

	freed := r.unembed(stuck, capsule)
	if r.collidesAt(freed, capsule) {
		t.Fatal("expected unembed to resolve out of solid geometry within the push cap")
	}
	if freed.Y <= stuck.Y {
		t.Fatal("expected unembed to push upward by default")
	}
}

func TestUnembedCapsPushDistanceWhenFullyEmbedded(t *testing.T) {
	// A solid column deep enough that unembed cannot fully escape within
	// antiStuckMaxPush for a tall capsule — it must still stop, not loop
	// forever or teleport arbitrarily far.
	deep := make([]vec.Vec3, 0, 10)
	for y := -1; y <= 8; y++ {
		deep = append(deep, vec.Vec3{X: 0, Y: y, Z: 0})
	}
	r := NewResolver(solidSet(deep...))
	capsule := Capsule{Radius: 0.3, Height: 1.8}
	stuck := vec.Vec3Float{X: 0, Y: 0, Z: 0}

	freed := r.unembed(stuck, capsule)
	if freed.Y-stuck.Y > antiStuckMaxPush+1e-9 {
		t.Fatalf("expected unembed push to stay within antiStuckMaxPush=%f, moved %f", antiStuckMaxPush, freed.Y-stuck.Y)
	}
}

func TestDetectGroundCapsuleReportsGroundVelocity(t *testing.T) {
	floor := []vec.Vec3{{X: 0, Y: -1, Z: 0}}
	r := NewResolver(solidSet(floor...))
	capsule := Capsule{Radius: 0.3, Height: 1.8}

	info := r.DetectGroundCapsule(vec.Vec3Float{Y: 0.05}, capsule, func(contact vec.Vec3Float) vec.Vec3Float {
		return vec.Vec3Float{X: 3}
	})
	if !info.Grounded {
		t.Fatal("expected entity standing just above a floor voxel to be grounded")
	}
	if info.GroundVel.X != 3 {
		t.Fatalf("expected ground velocity to come from groundVelAt callback, got %+v", info.GroundVel)
	}
}

func TestDetectGroundCapsuleReportsAirborne(t *testing.T) {
	r := NewResolver(solidSet())
	capsule := Capsule{Radius: 0.3, Height: 1.8}
	info := r.DetectGroundCapsule(vec.Vec3Float{Y: 100}, capsule, nil)
	if info.Grounded {
		t.Fatal("expected an entity far above any geometry to be airborne")
	}
}
