package world

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// fillCube sets every voxel in [origin, origin+size) to id.
func fillCube(isl *Island, origin vec.Vec3, size int, id block.BlockID) {
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				isl.SetVoxel(origin.Add(vec.Vec3{X: x, Y: y, Z: z}), id)
			}
		}
	}
}

func TestActivationRadiusDefaultsToRActivate(t *testing.T) {
	w := NewWorld(logging.GetWorldLogger())
	bp := DefaultBlueprint(1, vec.Vec3Float{X: 499}, 1)
	w.AddBlueprint(bp)

	if realised := w.ActivateNear(vec.Vec3Float{}); len(realised) != 1 {
		t.Fatalf("expected a blueprint at 499 units to realise under the default 500-unit R_activate, got %d realised", len(realised))
	}
}

func TestSetActivationRadiusOverridesDefault(t *testing.T) {
	w := NewWorld(logging.GetWorldLogger())
	w.SetActivationRadius(10)
	bp := DefaultBlueprint(1, vec.Vec3Float{X: 499}, 1)
	w.AddBlueprint(bp)

	if realised := w.ActivateNear(vec.Vec3Float{}); len(realised) != 0 {
		t.Fatalf("expected a narrowed activation radius to leave a far blueprint unrealised, got %d realised", len(realised))
	}
}

func TestSetVoxelInIslandDetectsSplitFromTwoCubesJoinedByBridge(t *testing.T) {
	w := NewWorld(logging.GetWorldLogger())
	isl := NewIsland(1, vec.Vec3Float{})
	isl.AddChunk(vec.Vec3{}, NewChunk(vec.Vec3{}))
	w.CreateIsland(isl)

	// Two 3x3x3 cubes, joined by a single-voxel bridge, all within one
	// chunk (spec.md §8's literal split scenario).
	fillCube(isl, vec.Vec3{X: 0, Y: 0, Z: 0}, 3, block.StoneBlockID)
	fillCube(isl, vec.Vec3{X: 4, Y: 0, Z: 0}, 3, block.StoneBlockID)
	bridge := vec.Vec3{X: 3, Y: 1, Z: 1}
	if err := w.SetVoxelInIsland(isl.ID, bridge, block.StoneBlockID); err != nil {
		t.Fatalf("unexpected error placing bridge: %v", err)
	}

	if created := w.DrainSplitChecks(); len(created) != 0 {
		t.Fatalf("expected no split while the bridge is intact, got %d new islands", len(created))
	}

	// Clearing the bridge voxel should now be detected as a split, even
	// though every solid voxel in this island fits in a single chunk.
	if err := w.SetVoxelInIsland(isl.ID, bridge, block.AirBlockID); err != nil {
		t.Fatalf("unexpected error clearing bridge: %v", err)
	}

	created := w.DrainSplitChecks()
	if len(created) != 1 {
		t.Fatalf("expected clearing the bridge to split off exactly one fragment island, got %d", len(created))
	}
}
