package world

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

func quadSetEqual(t *testing.T, a, b []Quad) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("quad count mismatch: %d vs %d", len(a), len(b))
	}
	seen := make(map[quadKey]block.BlockID, len(a))
	for _, q := range a {
		seen[quadKey{v: q.Voxel, d: q.Dir}] = q.BlockID
	}
	for _, q := range b {
		id, ok := seen[quadKey{v: q.Voxel, d: q.Dir}]
		if !ok || id != q.BlockID {
			t.Fatalf("quad %+v missing from reference set", q)
		}
	}
}

func TestChunkSingleVoxelExposesSixFaces(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.EnableQuadIndex()
	c.SetVec(vec.Vec3{X: 5, Y: 5, Z: 5}, block.StoneBlockID)

	quads := c.QuadSet()
	if len(quads) != 6 {
		t.Fatalf("expected 6 exposed faces for an isolated voxel, got %d", len(quads))
	}
}

func TestChunkAdjacentVoxelsOccludeSharedFace(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.EnableQuadIndex()
	c.SetVec(vec.Vec3{X: 5, Y: 5, Z: 5}, block.StoneBlockID)
	c.SetVec(vec.Vec3{X: 6, Y: 5, Z: 5}, block.StoneBlockID)

	quads := c.QuadSet()
	if len(quads) != 10 {
		t.Fatalf("expected 10 exposed faces for two adjacent voxels (12 - 2 occluded), got %d", len(quads))
	}
}

func TestChunkIncrementalMatchesFullRemesh(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.EnableQuadIndex()

	edits := []vec.Vec3{
		{X: 1, Y: 1, Z: 1}, {X: 2, Y: 1, Z: 1}, {X: 1, Y: 2, Z: 1},
		{X: 1, Y: 1, Z: 2}, {X: 10, Y: 10, Z: 10}, {X: 2, Y: 2, Z: 2},
	}
	for _, p := range edits {
		c.SetVec(p, block.StoneBlockID)
	}
	// Break one to exercise removal bookkeeping (free-slot reuse).
	c.SetVec(vec.Vec3{X: 2, Y: 1, Z: 1}, block.AirBlockID)

	incremental := c.QuadSet()
	snap := c.GenerateFullMesh()
	quadSetEqual(t, incremental, snap.Quads)
}

func TestChunkOutOfBoundsWriteRejected(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	if c.Set(-1, 0, 0, block.StoneBlockID) {
		t.Fatal("expected out-of-bounds Set to return false")
	}
	if c.Set(ChunkSize, 0, 0, block.StoneBlockID) {
		t.Fatal("expected out-of-bounds Set to return false")
	}
}

func TestChunkCrossChunkOcclusionViaNeighbourhood(t *testing.T) {
	isl := NewIsland(1, vec.Vec3Float{})
	a := NewChunk(vec.Vec3{X: 0, Y: 0, Z: 0})
	a.EnableQuadIndex()
	isl.AddChunk(a.Coord, a)
	b := NewChunk(vec.Vec3{X: 1, Y: 0, Z: 0})
	b.EnableQuadIndex()
	isl.AddChunk(b.Coord, b)

	// Voxel at the +X boundary of chunk a, and the matching -X boundary
	// voxel of chunk b, should occlude each other's shared face once both
	// are solid.
	a.SetVec(vec.Vec3{X: ChunkSize - 1, Y: 0, Z: 0}, block.StoneBlockID)
	quadsBefore := a.QuadSet()
	foundExposedPosX := false
	for _, q := range quadsBefore {
		if q.Voxel == (vec.Vec3{X: ChunkSize - 1, Y: 0, Z: 0}) && q.Dir == DirPosX {
			foundExposedPosX = true
		}
	}
	if !foundExposedPosX {
		t.Fatal("expected +X face exposed before neighbour chunk gets a voxel")
	}

	b.SetVec(vec.Vec3{X: 0, Y: 0, Z: 0}, block.StoneBlockID)
	quadsAfter := a.QuadSet()
	for _, q := range quadsAfter {
		if q.Voxel == (vec.Vec3{X: ChunkSize - 1, Y: 0, Z: 0}) && q.Dir == DirPosX {
			t.Fatal("expected +X face occluded once neighbour chunk's -X voxel became solid")
		}
	}
}

func TestChunkVoxelVersionAndMeshDirty(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	if c.VoxelVersion() != 0 {
		t.Fatal("expected fresh chunk to start at voxel version 0")
	}
	c.SetVec(vec.Vec3{X: 0, Y: 0, Z: 0}, block.StoneBlockID)
	if !c.MeshDirty() {
		t.Fatal("expected meshDirty after a voxel write")
	}
	v1 := c.VoxelVersion()
	if v1 == 0 {
		t.Fatal("expected voxel version to advance after a write")
	}

	snap := c.GenerateFullMesh()
	c.SwapMesh(snap, snap)
	if c.MeshDirty() {
		t.Fatal("expected meshDirty cleared after swapping in an up-to-date snapshot")
	}
}
