package authority

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

func TestVoxelPredictionConfirmsOnMatchingEcho(t *testing.T) {
	// "Place/break" scenario (spec.md §8): client predicts stone at
	// (4,4,4), server echoes the same voxel — confirmed, pending empty.
	table := NewVoxelPredictionTable()
	pos := vec.Vec3{X: 4, Y: 4, Z: 4}
	table.Predict(1, VoxelPendingPrediction{
		IslandID:       7,
		LocalPos:       pos,
		PredictedVoxel: block.StoneBlockID,
		PreviousVoxel:  block.AirBlockID,
	})

	applied := false
	confirmed := table.Reconcile(1, 7, pos, block.StoneBlockID, func(uint32, vec.Vec3, block.BlockID) {
		applied = true
	})

	if !confirmed {
		t.Fatal("expected a matching echo to confirm the prediction")
	}
	if applied {
		t.Fatal("expected a confirmed prediction not to re-apply the server value")
	}
	if table.Len() != 0 {
		t.Fatalf("expected the pending table to be empty after confirmation, got %d", table.Len())
	}
}

func TestVoxelPredictionReconcilesOnMispredict(t *testing.T) {
	// "Mispredict" scenario (spec.md §8): client predicts wood for seq=2,
	// server returns stone — client ends with stone, pending empty.
	table := NewVoxelPredictionTable()
	pos := vec.Vec3{X: 4, Y: 4, Z: 4}
	table.Predict(2, VoxelPendingPrediction{
		IslandID:       7,
		LocalPos:       pos,
		PredictedVoxel: block.WoodBlockID,
		PreviousVoxel:  block.AirBlockID,
	})

	var gotVoxel block.BlockID
	applied := false
	confirmed := table.Reconcile(2, 7, pos, block.StoneBlockID, func(islandID uint32, localPos vec.Vec3, voxel block.BlockID) {
		applied = true
		gotVoxel = voxel
	})

	if confirmed {
		t.Fatal("expected a mismatched echo to reconcile, not confirm")
	}
	if !applied {
		t.Fatal("expected the mismatched server value to be applied via the client-with-mesh path")
	}
	if gotVoxel != block.StoneBlockID {
		t.Fatalf("expected the server's voxel (stone) to be applied, got %v", gotVoxel)
	}
	if table.Len() != 0 {
		t.Fatalf("expected the pending table to be empty after reconciliation, got %d", table.Len())
	}
}

func TestVoxelPredictionAppliesDirectlyWithNoPendingEntry(t *testing.T) {
	table := NewVoxelPredictionTable()
	pos := vec.Vec3{X: 1, Y: 2, Z: 3}

	applied := false
	confirmed := table.Reconcile(99, 1, pos, block.StoneBlockID, func(uint32, vec.Vec3, block.BlockID) {
		applied = true
	})

	if confirmed {
		t.Fatal("expected no pending entry to never report confirmed")
	}
	if !applied {
		t.Fatal("expected the server value to be applied directly when no prediction is pending")
	}
}

func TestVoxelPredictionGetReturnsPendingEntry(t *testing.T) {
	table := NewVoxelPredictionTable()
	pred := VoxelPendingPrediction{IslandID: 1, LocalPos: vec.Vec3{X: 1}, PredictedVoxel: 2, PreviousVoxel: 0}
	table.Predict(5, pred)

	got, ok := table.Get(5)
	if !ok {
		t.Fatal("expected Get to find the recorded prediction")
	}
	if got != pred {
		t.Fatalf("expected %+v, got %+v", pred, got)
	}

	if _, ok := table.Get(6); ok {
		t.Fatal("expected Get to report false for an unrecorded sequence")
	}
}
