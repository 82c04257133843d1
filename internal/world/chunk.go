package world

import (
	"fmt"
	"sync"

	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// ChunkSize is the side length, in voxels, of a cubic chunk. Every
// coordinate-division site in the package derives from this single
// constant (grounded on original_source/engine/World/ChunkConstants.h's
// single-source-of-truth pattern; the value itself is the spec's
// canonical 32, not the original's 256).
const ChunkSize = 32

// Direction indexes a voxel face. The ordering matches vec.Vec3.Neighbors6.
type Direction int

const (
	DirNegX Direction = iota
	DirPosX
	DirNegY
	DirPosY
	DirNegZ
	DirPosZ
)

var directionOffsets = [6]vec.Vec3{
	{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1},
}

// Offset returns the unit vector for a face direction.
func (d Direction) Offset() vec.Vec3 { return directionOffsets[d] }

// Quad is one exposed voxel face, addressed by the voxel it belongs to and
// the direction it faces. Position reconstruction from (Voxel, Dir) is left
// to the renderer — spec.md Open Question 3 says the sub-voxel offset math
// is not part of this contract.
type Quad struct {
	Voxel   vec.Vec3
	Dir     Direction
	BlockID block.BlockID
}

type quadKey struct {
	v vec.Vec3
	d Direction
}

// Chunk is a dense S³ voxel array with an incrementally maintained surface
// quad index. A Chunk is owned by exactly one Island and is never written
// from more than one goroutine concurrently — the IslandSystem serializes
// writes on the simulation thread (spec.md §5).
type Chunk struct {
	Coord  vec.Vec3 // integer chunk coordinate within its island
	voxels [ChunkSize * ChunkSize * ChunkSize]block.BlockID

	mu         sync.RWMutex
	quadIndex  map[quadKey]int // (voxel,dir) -> slot in quads
	quads      []Quad
	freeSlots  []int
	indexed    bool // whether quadIndex/quads are being maintained incrementally
	meshDirty  bool
	voxelVers  uint64 // bumped on every Set that changes a voxel; lets the mesh pipeline detect edits newer than a snapshot

	instances map[block.BlockID][]vec.Vec3 // per-block-type model instance positions

	render    *MeshSnapshot
	collision *MeshSnapshot

	neighbours ChunkNeighbourhood // resolves cross-chunk face queries; nil at chunk boundaries behaves as "always solid air" i.e. always exposed
}

// ChunkNeighbourhood resolves the voxel adjacent to a chunk boundary,
// replacing the teacher's back-pointer from chunk to the island system
// (spec.md Design Notes §9). The island system supplies an implementation
// bound to a specific island when it hands a chunk to code that needs
// cross-chunk queries.
type ChunkNeighbourhood interface {
	// NeighbourSolid reports whether the voxel at globalLocalPos (in the
	// owning island's local space) is solid and non-transparent. ok is
	// false if the position falls outside any loaded chunk — callers then
	// treat the face as exposed (island-boundary faces are always emitted).
	NeighbourSolid(globalLocalPos vec.Vec3) (solid bool, ok bool)
}

// NewChunk creates an empty (all-air) chunk at the given coordinate.
func NewChunk(coord vec.Vec3) *Chunk {
	return &Chunk{
		Coord:     coord,
		quadIndex: make(map[quadKey]int),
		instances: make(map[block.BlockID][]vec.Vec3),
	}
}

// SetNeighbourhood binds the query object used to resolve faces at the
// chunk's boundary. Must be called before EnableQuadIndex/SetVoxel if
// cross-chunk occlusion is required; a nil neighbourhood treats every
// boundary face as exposed.
func (c *Chunk) SetNeighbourhood(n ChunkNeighbourhood) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.neighbours = n
}

// localIndex converts (x,y,z) in [0,ChunkSize) to a flat array index. The
// caller must have validated bounds.
func localIndex(x, y, z int) int {
	return (x*ChunkSize+y)*ChunkSize + z
}

func inBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkSize && y >= 0 && y < ChunkSize && z >= 0 && z < ChunkSize
}

// Get returns the voxel at local coordinates (x,y,z).
func (c *Chunk) Get(x, y, z int) block.BlockID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !inBounds(x, y, z) {
		return block.AirBlockID
	}
	return c.voxels[localIndex(x, y, z)]
}

// GetVec is Get addressed by vec.Vec3.
func (c *Chunk) GetVec(p vec.Vec3) block.BlockID {
	return c.Get(p.X, p.Y, p.Z)
}

// EnableQuadIndex performs a full remesh and begins incremental maintenance
// of the quad index on subsequent Set calls. Chunks that never need a mesh
// (server-authoritative-only chunks with no client view) may skip this.
func (c *Chunk) EnableQuadIndex() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexed = true
	c.rebuildQuadIndexLocked()
}

// Set writes a voxel and, if the quad index is enabled, incrementally
// updates exposed/occluded faces for the write. Out-of-range coordinates
// are a programming error: the chunk refuses the write and returns false.
func (c *Chunk) Set(x, y, z int, id block.BlockID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !inBounds(x, y, z) {
		return false
	}
	c.setLocked(x, y, z, id)
	return true
}

// SetVec is Set addressed by vec.Vec3.
func (c *Chunk) SetVec(p vec.Vec3, id block.BlockID) bool {
	return c.Set(p.X, p.Y, p.Z, id)
}

func (c *Chunk) setLocked(x, y, z int, id block.BlockID) {
	idx := localIndex(x, y, z)
	old := c.voxels[idx]
	if old == id {
		return
	}
	c.voxels[idx] = id
	c.voxelVers++
	c.meshDirty = true
	c.updateInstanceListLocked(vec.Vec3{X: x, Y: y, Z: z}, old, id)

	if !c.indexed {
		return
	}

	v := vec.Vec3{X: x, Y: y, Z: z}
	// The voxel's own faces: add if newly solid&exposed, remove if no longer.
	for d := DirNegX; d <= DirPosZ; d++ {
		c.refreshFaceLocked(v, d)
	}
	// Each of the 6 neighbours may have gained/lost occlusion on the shared
	// face pointing back at v.
	for d := DirNegX; d <= DirPosZ; d++ {
		n := v.Add(d.Offset())
		c.refreshFaceLocked(n, opposite(d))
	}
}

func opposite(d Direction) Direction {
	switch d {
	case DirNegX:
		return DirPosX
	case DirPosX:
		return DirNegX
	case DirNegY:
		return DirPosY
	case DirPosY:
		return DirNegY
	case DirNegZ:
		return DirPosZ
	default:
		return DirNegZ
	}
}

// refreshFaceLocked recomputes whether voxel v's face in direction d should
// be in the quad index, adding or removing a quad as needed. v may be
// outside the chunk bounds (it addresses a neighbour's face); such faces
// are never stored — they belong to the neighbour chunk's own index.
func (c *Chunk) refreshFaceLocked(v vec.Vec3, d Direction) {
	if !inBounds(v.X, v.Y, v.Z) {
		return
	}
	id := c.voxels[localIndex(v.X, v.Y, v.Z)]
	key := quadKey{v: v, d: d}
	shouldExist := block.IsSolid(id) && !c.faceOccludedLocked(v, d)

	slot, exists := c.quadIndex[key]
	switch {
	case shouldExist && !exists:
		c.addQuadLocked(key, Quad{Voxel: v, Dir: d, BlockID: id})
	case shouldExist && exists:
		c.quads[slot].BlockID = id
	case !shouldExist && exists:
		c.removeQuadLocked(key, slot)
	}
}

// faceOccludedLocked reports whether the face of v in direction d is
// occluded by a solid, non-transparent neighbour (including across chunk
// boundaries via the neighbourhood, or within this chunk).
func (c *Chunk) faceOccludedLocked(v vec.Vec3, d Direction) bool {
	n := v.Add(d.Offset())
	if inBounds(n.X, n.Y, n.Z) {
		id := c.voxels[localIndex(n.X, n.Y, n.Z)]
		return block.IsSolid(id) && !block.IsTransparent(id)
	}
	if c.neighbours == nil {
		return false // island boundary with no neighbourhood: always exposed
	}
	solid, ok := c.neighbours.NeighbourSolid(c.Coord.Mul(ChunkSize).Add(n))
	if !ok {
		return false // outside any loaded chunk: always exposed
	}
	return solid
}

func (c *Chunk) addQuadLocked(key quadKey, q Quad) {
	if n := len(c.freeSlots); n > 0 {
		slot := c.freeSlots[n-1]
		c.freeSlots = c.freeSlots[:n-1]
		c.quads[slot] = q
		c.quadIndex[key] = slot
		return
	}
	c.quadIndex[key] = len(c.quads)
	c.quads = append(c.quads, q)
}

func (c *Chunk) removeQuadLocked(key quadKey, slot int) {
	delete(c.quadIndex, key)
	c.quads[slot] = Quad{} // slot content is irrelevant once freed
	c.freeSlots = append(c.freeSlots, slot)
}

func (c *Chunk) updateInstanceListLocked(v vec.Vec3, old, new_ block.BlockID) {
	if bt, ok := block.Get(old); ok && bt.RenderClass == block.RenderInstancedMesh {
		list := c.instances[old]
		for i, p := range list {
			if p == v {
				list[i] = list[len(list)-1]
				c.instances[old] = list[:len(list)-1]
				break
			}
		}
	}
	if bt, ok := block.Get(new_); ok && bt.RenderClass == block.RenderInstancedMesh {
		c.instances[new_] = append(c.instances[new_], v)
	}
}

// rebuildQuadIndexLocked performs generateFullMesh: scans every voxel and
// rebuilds the quad list from scratch. Used by EnableQuadIndex and for
// initial upload / after bulk edits.
func (c *Chunk) rebuildQuadIndexLocked() {
	c.quadIndex = make(map[quadKey]int)
	c.quads = c.quads[:0]
	c.freeSlots = c.freeSlots[:0]
	c.instances = make(map[block.BlockID][]vec.Vec3)

	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				id := c.voxels[localIndex(x, y, z)]
				if id == block.AirBlockID {
					continue
				}
				v := vec.Vec3{X: x, Y: y, Z: z}
				if bt, ok := block.Get(id); ok && bt.RenderClass == block.RenderInstancedMesh {
					c.instances[id] = append(c.instances[id], v)
				}
				if !block.IsSolid(id) {
					continue
				}
				for d := DirNegX; d <= DirPosZ; d++ {
					if !c.faceOccludedLocked(v, d) {
						key := quadKey{v: v, d: d}
						c.quadIndex[key] = len(c.quads)
						c.quads = append(c.quads, Quad{Voxel: v, Dir: d, BlockID: id})
					}
				}
			}
		}
	}
}

// GenerateFullMesh returns a fresh MeshSnapshot built by scanning every
// voxel, without touching the chunk's own incremental index. Used by the
// async mesh pipeline, which must not mutate the chunk from a worker
// goroutine.
func (c *Chunk) GenerateFullMesh() *MeshSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quads := make([]Quad, 0, len(c.quads))
	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				id := c.voxels[localIndex(x, y, z)]
				if !block.IsSolid(id) {
					continue
				}
				v := vec.Vec3{X: x, Y: y, Z: z}
				for d := DirNegX; d <= DirPosZ; d++ {
					if !c.faceOccludedLocked(v, d) {
						quads = append(quads, Quad{Voxel: v, Dir: d, BlockID: id})
					}
				}
			}
		}
	}

	instances := make(map[block.BlockID][]vec.Vec3, len(c.instances))
	for id, list := range c.instances {
		cp := make([]vec.Vec3, len(list))
		copy(cp, list)
		instances[id] = cp
	}

	return &MeshSnapshot{Quads: quads, Instances: instances, VoxelVersion: c.voxelVers}
}

// QuadSet returns the current outward-face set as a quad slice (freed
// slots excluded). Used by tests comparing incremental vs. full-remesh
// results as sets.
func (c *Chunk) QuadSet() []Quad {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Quad, 0, len(c.quadIndex))
	for key, slot := range c.quadIndex {
		out = append(out, c.quads[slot])
		_ = key
	}
	return out
}

// MeshDirty reports whether the chunk has unswapped voxel edits.
func (c *Chunk) MeshDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meshDirty
}

// VoxelVersion returns the monotonic counter bumped on every Set call that
// changes a voxel.
func (c *Chunk) VoxelVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voxelVers
}

// SwapMesh installs new render/collision snapshots under the chunk lock, so
// readers see either the old pair or the new one, and clears meshDirty if
// the snapshot is at least as new as the chunk's last edit at swap time.
// cmd/server calls it from the mesh pipeline's OnReady callback, on a mesh
// worker goroutine.
func (c *Chunk) SwapMesh(render, collision *MeshSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render = render
	c.collision = collision
	if render != nil && render.VoxelVersion >= c.voxelVers {
		c.meshDirty = false
	}
}

// RenderMesh returns a handle to the current render snapshot (nil if none
// has been produced yet). The returned pointer is safe to hold: snapshots
// are never mutated after construction.
func (c *Chunk) RenderMesh() *MeshSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.render
}

// CollisionMesh returns a handle to the current collision snapshot.
func (c *Chunk) CollisionMesh() *MeshSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collision
}

// MeshSnapshot is an immutable render/collision mesh value. A chunk and
// any number of renderer read-refs may share the same snapshot; its
// lifetime (via Go's GC) is the longest holder — spec.md Design Notes §9.
type MeshSnapshot struct {
	Quads        []Quad
	Instances    map[block.BlockID][]vec.Vec3
	VoxelVersion uint64
}

// String implements fmt.Stringer for log lines.
func (d Direction) String() string {
	names := [6]string{"-X", "+X", "-Y", "+Y", "-Z", "+Z"}
	if d < DirNegX || d > DirPosZ {
		return fmt.Sprintf("dir(%d)", int(d))
	}
	return names[d]
}
