package world

import (
	"github.com/skyforge-mmo/skyforge/internal/util"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// IslandBlueprint describes an island that has not yet been realised into
// loaded chunks: a procedural recipe plus the world-space center it will
// spawn at. The World aggregate keeps a set of these and realises one when
// a client comes within activation range (spec.md §4 "unrealised
// blueprints").
type IslandBlueprint struct {
	ID         IslandID
	Center     vec.Vec3Float
	Seed       int64
	RadiusCk   int     // island radius in chunks
	Density    float64 // Noise3D threshold above which a voxel is solid
	SurfaceKey block.BlockID
	FillKey    block.BlockID
}

// Realise procedurally carves a roughly-spherical voxel mass from the
// blueprint into a fresh Island: a density field built from 3D Perlin noise
// is thresholded per-voxel, and the chunks touching the resulting solid
// region are allocated and filled. Grounded on the teacher's terrain
// generator (2D heightmap) generalized to a 3D density-field carve since a
// floating island has no single ground plane.
func (bp *IslandBlueprint) Realise() *Island {
	isl := NewIsland(bp.ID, bp.Center)

	radiusVoxels := bp.RadiusCk * ChunkSize
	minCk := -bp.RadiusCk
	maxCk := bp.RadiusCk

	for cx := minCk; cx <= maxCk; cx++ {
		for cy := minCk; cy <= maxCk; cy++ {
			for cz := minCk; cz <= maxCk; cz++ {
				coord := vec.Vec3{X: cx, Y: cy, Z: cz}
				chunk := NewChunk(coord)
				anySolid := false

				for lx := 0; lx < ChunkSize; lx++ {
					for ly := 0; ly < ChunkSize; ly++ {
						for lz := 0; lz < ChunkSize; lz++ {
							wx := cx*ChunkSize + lx
							wy := cy*ChunkSize + ly
							wz := cz*ChunkSize + lz

							distRatio := vec.Vec3Float{X: float64(wx), Y: float64(wy), Z: float64(wz)}.Length() / float64(radiusVoxels)
							if distRatio > 1.3 {
								continue // far outside the blueprint radius: never solid, skip the noise call
							}

							n := util.PerlinNoise3D(float64(wx)*0.05, float64(wy)*0.05, float64(wz)*0.05, bp.Seed)
							falloff := 1.0 - distRatio*distRatio // denser core, sparser edge
							if falloff < 0 {
								falloff = 0
							}
							if n*falloff <= bp.Density {
								continue
							}

							id := bp.FillKey
							if wy >= 0 && n > bp.Density+0.12 {
								id = bp.SurfaceKey
							}
							chunk.Set(lx, ly, lz, id)
							anySolid = true
						}
					}
				}

				if anySolid {
					chunk.EnableQuadIndex()
					isl.AddChunk(coord, chunk)
				}
			}
		}
	}

	return isl
}

// DefaultBlueprint returns a blueprint producing a medium island of the
// canonical stone/grass/dirt block set, suitable as a default spawn island
// or for World's own procedural seeding.
func DefaultBlueprint(id IslandID, center vec.Vec3Float, seed int64) IslandBlueprint {
	return IslandBlueprint{
		ID:         id,
		Center:     center,
		Seed:       seed,
		RadiusCk:   2,
		Density:    0.45,
		SurfaceKey: block.GrassBlockID,
		FillKey:    block.StoneBlockID,
	}
}
