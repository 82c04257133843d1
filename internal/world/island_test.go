package world

import (
	"math"
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIslandIntegrateAppliesVelocityAndAcceleration(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	isl.SetVelocities(vec.Vec3Float{X: 1}, vec.Vec3Float{})
	isl.SetAccelerations(vec.Vec3Float{Y: 2}, vec.Vec3Float{})

	isl.Integrate(1.0)

	center := isl.PhysicsCenter()
	if !almostEqual(center.X, 1) {
		t.Fatalf("expected X to advance by linear velocity, got %+v", center)
	}
	linear, _ := isl.Velocities()
	if !almostEqual(linear.Y, 2) {
		t.Fatalf("expected Y velocity to pick up one tick of acceleration, got %+v", linear)
	}
	if !almostEqual(center.Y, 2) {
		t.Fatalf("expected Y to advance using velocity as of the integration step, got %+v", center)
	}
}

func TestIslandTransformCachedUntilDirty(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{X: 5})
	m1 := isl.GetTransformMatrix()
	m2 := isl.GetTransformMatrix()
	if m1 != m2 {
		t.Fatal("expected a repeated call with no mutation to return the identical cached matrix")
	}

	isl.SetTransform(vec.Vec3Float{X: 10}, vec.QuatIdentity())
	m3 := isl.GetTransformMatrix()
	p := m3.TransformPoint(vec.Vec3Float{})
	if !almostEqual(p.X, 10) {
		t.Fatalf("expected recomputed transform to reflect the new center, got %+v", p)
	}
}

func TestIslandNeedsPhysicsUpdateLifecycle(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	isl.ClearPhysicsUpdate()
	if isl.NeedsPhysicsUpdate() {
		t.Fatal("expected a freshly cleared island to report no pending update")
	}
	isl.Integrate(1.0 / 60.0)
	if !isl.NeedsPhysicsUpdate() {
		t.Fatal("expected Integrate to set needsPhysicsUpdate")
	}
	isl.ClearPhysicsUpdate()
	if isl.NeedsPhysicsUpdate() {
		t.Fatal("expected ClearPhysicsUpdate to reset the flag")
	}
}

func TestIslandSleepingFluidNearFiltersByRadius(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	isl.MarkFluidSleeping(vec.Vec3{X: 0, Y: 0, Z: 0})
	isl.MarkFluidSleeping(vec.Vec3{X: 100, Y: 0, Z: 0})

	near := isl.SleepingFluidNear(vec.Vec3Float{}, 5)
	if len(near) != 1 {
		t.Fatalf("expected exactly 1 sleeping voxel within radius 5, got %d", len(near))
	}
	if near[0] != (vec.Vec3{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("expected the near voxel to be the origin one, got %+v", near[0])
	}
}

func TestIslandClearFluidSleepingRemoves(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	p := vec.Vec3{X: 1, Y: 2, Z: 3}
	isl.MarkFluidSleeping(p)
	if !isl.IsFluidSleeping(p) {
		t.Fatal("expected voxel to be marked sleeping")
	}
	isl.ClearFluidSleeping(p)
	if isl.IsFluidSleeping(p) {
		t.Fatal("expected voxel to no longer be sleeping after clearing")
	}
}

func TestWorldToLocalRoundTripsThroughChunkBoundaries(t *testing.T) {
	p := vec.Vec3{X: -1, Y: ChunkSize + 3, Z: 2*ChunkSize - 1}
	coord, local := WorldToLocal(p)
	back := LocalToWorld(coord, local)
	if back != p {
		t.Fatalf("expected WorldToLocal/LocalToWorld to round-trip, got %+v want %+v", back, p)
	}
	if local.X < 0 || local.X >= ChunkSize || local.Y < 0 || local.Y >= ChunkSize || local.Z < 0 || local.Z >= ChunkSize {
		t.Fatalf("expected local coordinates within [0, ChunkSize), got %+v", local)
	}
}

func TestIslandSetVoxelRejectsUnloadedChunk(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	if isl.SetVoxel(vec.Vec3{X: 1000}, 1) {
		t.Fatal("expected SetVoxel to fail for a chunk that was never added")
	}
}
