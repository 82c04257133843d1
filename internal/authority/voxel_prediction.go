package authority

import (
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// VoxelPendingPrediction is one client-side voxel edit applied
// optimistically but not yet confirmed by the server, keyed by the
// client's own monotonic sequence number (spec.md §3 "Pending
// prediction"; SPEC_FULL §3).
type VoxelPendingPrediction struct {
	IslandID       uint32
	LocalPos       vec.Vec3
	PredictedVoxel block.BlockID
	PreviousVoxel  block.BlockID
}

// VoxelPredictionTable tracks every voxel edit the client has applied
// optimistically but not yet had confirmed or reconciled by the server's
// VoxelChangeUpdate (spec.md §4.H).
type VoxelPredictionTable struct {
	pending map[uint32]VoxelPendingPrediction
}

// NewVoxelPredictionTable returns an empty table.
func NewVoxelPredictionTable() *VoxelPredictionTable {
	return &VoxelPredictionTable{pending: make(map[uint32]VoxelPendingPrediction)}
}

// Predict records a client-applied optimistic voxel edit, keyed by seq.
func (t *VoxelPredictionTable) Predict(seq uint32, pred VoxelPendingPrediction) {
	t.pending[seq] = pred
}

// Len returns the number of unconfirmed voxel predictions.
func (t *VoxelPredictionTable) Len() int { return len(t.pending) }

// Get returns the pending prediction for seq, if any.
func (t *VoxelPredictionTable) Get(seq uint32) (VoxelPendingPrediction, bool) {
	p, ok := t.pending[seq]
	return p, ok
}

// Reconcile applies an incoming VoxelChangeUpdate against the pending
// table (spec.md §4.H):
//
//   - A matching pending entry whose (islandID, localPos, voxel) all agree
//     with the update is confirmed: the optimistic edit already applied
//     locally is correct, so it is simply cleared and applyServer is not
//     called.
//   - A pending entry that disagrees is reconciled: applyServer is called
//     with the server's actual voxel so the client-with-mesh path
//     overwrites the mispredicted value, then the entry is cleared.
//   - No pending entry for seq means the update was never predicted (e.g.
//     another client's edit, or a server-originated split clear): the
//     server's value is applied directly.
//
// Returns true if the update matched and confirmed an existing prediction
// with no correction needed.
func (t *VoxelPredictionTable) Reconcile(seq uint32, islandID uint32, localPos vec.Vec3, voxel block.BlockID, applyServer func(islandID uint32, localPos vec.Vec3, voxel block.BlockID)) bool {
	pred, ok := t.pending[seq]
	if !ok {
		applyServer(islandID, localPos, voxel)
		return false
	}
	delete(t.pending, seq)

	if pred.IslandID == islandID && pred.LocalPos == localPos && pred.PredictedVoxel == voxel {
		return true
	}
	applyServer(islandID, localPos, voxel)
	return false
}
