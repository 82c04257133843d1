package world

import (
	"sync"

	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// IslandID identifies an island for the lifetime of a server process. IDs
// are never reused within a process (spec.md §3); persistence across
// restarts is explicitly out of scope.
type IslandID uint32

// IslandState distinguishes an island at rest from one under active
// piloting input (spec.md §4.F's per-island idle/piloted state machine).
type IslandState int

const (
	IslandIdle IslandState = iota
	IslandPiloted
)

// Island owns a sparse set of chunks plus the single rigid-body transform
// shared by all of them. Chunk-local voxel coordinates are transformed to
// world space by GetChunkTransform; the island itself never stores voxel
// data, only the chunks that do (spec.md Design Notes §9 — Island and World
// replace the teacher's global WorldManager singleton).
type Island struct {
	ID IslandID

	mu     sync.RWMutex
	chunks map[vec.Vec3]*Chunk

	physicsCenter vec.Vec3Float
	orientation   vec.Quat
	linearVel     vec.Vec3Float
	angularVel    vec.Vec3Float // radians/sec around local X,Y,Z
	linearAccel   vec.Vec3Float
	angularAccel  vec.Vec3Float

	transformDirty bool
	cachedTransform vec.Mat4

	needsPhysicsUpdate bool // cleared by the (out-of-scope) renderer after consuming a transform change

	state IslandState

	// sleepingFluid holds WATER voxels that have settled and are not
	// simulated as active particles. Keyed by local voxel position within
	// the island (not per-chunk) so tug activation can query across chunk
	// boundaries without resolving a chunk first.
	sleepingFluid map[vec.Vec3]struct{}
}

// NewIsland creates an island at the given initial center with identity
// orientation and zero velocity.
func NewIsland(id IslandID, center vec.Vec3Float) *Island {
	return &Island{
		ID:                 id,
		chunks:             make(map[vec.Vec3]*Chunk),
		physicsCenter:      center,
		orientation:        vec.QuatIdentity(),
		transformDirty:     true,
		needsPhysicsUpdate: false,
		sleepingFluid:      make(map[vec.Vec3]struct{}),
	}
}

// AddChunk installs a chunk at the given chunk coordinate, overwriting any
// existing chunk there. Binds the chunk's neighbourhood resolver to this
// island so incremental meshing sees across chunk boundaries.
func (isl *Island) AddChunk(coord vec.Vec3, c *Chunk) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	c.Coord = coord
	c.SetNeighbourhood(&islandNeighbourhood{island: isl})
	isl.chunks[coord] = c
}

// Chunk returns the chunk at coord, or nil if unloaded.
func (isl *Island) Chunk(coord vec.Vec3) *Chunk {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.chunks[coord]
}

// Chunks returns a snapshot slice of every loaded chunk. Safe to range over
// without holding the island lock.
func (isl *Island) Chunks() []*Chunk {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	out := make([]*Chunk, 0, len(isl.chunks))
	for _, c := range isl.chunks {
		out = append(out, c)
	}
	return out
}

// WorldToLocal converts an island-local voxel position to its owning
// chunk coordinate and the voxel's local-within-chunk position.
func WorldToLocal(p vec.Vec3) (chunkCoord, local vec.Vec3) {
	return p.FloorDiv(ChunkSize), p.Mod(ChunkSize)
}

// LocalToWorld is the inverse of WorldToLocal.
func LocalToWorld(chunkCoord, local vec.Vec3) vec.Vec3 {
	return chunkCoord.Mul(ChunkSize).Add(local)
}

// GetVoxel looks up a voxel by island-local position, resolving the owning
// chunk. Returns block.AirBlockID for unloaded chunks.
func (isl *Island) GetVoxel(p vec.Vec3) block.BlockID {
	coord, local := WorldToLocal(p)
	c := isl.Chunk(coord)
	if c == nil {
		return block.AirBlockID
	}
	return c.GetVec(local)
}

// SetVoxel writes a voxel by island-local position. Returns false if the
// owning chunk is not loaded — callers creating new terrain must add the
// chunk first.
func (isl *Island) SetVoxel(p vec.Vec3, id block.BlockID) bool {
	coord, local := WorldToLocal(p)
	c := isl.Chunk(coord)
	if c == nil {
		return false
	}
	return c.SetVec(local, id)
}

// islandNeighbourhood resolves cross-chunk face occlusion queries for a
// chunk's incremental quad index (Chunk.faceOccludedLocked).
type islandNeighbourhood struct {
	island *Island
}

func (n *islandNeighbourhood) NeighbourSolid(localPos vec.Vec3) (bool, bool) {
	coord, local := WorldToLocal(localPos)
	c := n.island.Chunk(coord)
	if c == nil {
		return false, false
	}
	id := c.GetVec(local)
	return block.IsSolid(id) && !block.IsTransparent(id), true
}

// --- Rigid-body transform -------------------------------------------------

// PhysicsCenter returns the island's current center of mass in world space.
func (isl *Island) PhysicsCenter() vec.Vec3Float {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.physicsCenter
}

// Orientation returns the island's current orientation quaternion.
func (isl *Island) Orientation() vec.Quat {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.orientation
}

// Velocities returns the linear and angular velocity.
func (isl *Island) Velocities() (linear, angular vec.Vec3Float) {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.linearVel, isl.angularVel
}

// SetVelocities overwrites the linear and angular velocity, e.g. from a
// piloting-input tick or a physics response.
func (isl *Island) SetVelocities(linear, angular vec.Vec3Float) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.linearVel = linear
	isl.angularVel = angular
}

// Accelerations returns the linear and angular acceleration applied per tick.
func (isl *Island) Accelerations() (linear, angular vec.Vec3Float) {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.linearAccel, isl.angularAccel
}

// SetAccelerations overwrites the per-tick linear and angular acceleration.
func (isl *Island) SetAccelerations(linear, angular vec.Vec3Float) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.linearAccel = linear
	isl.angularAccel = angular
}

// Integrate advances center/orientation by one fixed-step dt using the
// current velocity/acceleration, and invalidates the cached transform. Only
// the simulation thread calls this (spec.md §5).
func (isl *Island) Integrate(dt float64) {
	isl.mu.Lock()
	defer isl.mu.Unlock()

	isl.linearVel = isl.linearVel.Add(isl.linearAccel.Mul(dt))
	isl.angularVel = isl.angularVel.Add(isl.angularAccel.Mul(dt))

	isl.physicsCenter = isl.physicsCenter.Add(isl.linearVel.Mul(dt))
	deltaRot := vec.QuatFromEulerXYZ(isl.angularVel.X*dt, isl.angularVel.Y*dt, isl.angularVel.Z*dt)
	isl.orientation = deltaRot.Mul(isl.orientation).Normalized()

	isl.transformDirty = true
	isl.needsPhysicsUpdate = true
}

// InvalidateTransform forces GetTransformMatrix to recompute on next call,
// e.g. after a direct (non-integrated) center/orientation write such as a
// client reconciliation snap.
func (isl *Island) InvalidateTransform() {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.transformDirty = true
	isl.needsPhysicsUpdate = true
}

// SetTransform directly overwrites center and orientation, bypassing
// velocity integration — used by server authority snap-correction.
func (isl *Island) SetTransform(center vec.Vec3Float, orientation vec.Quat) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.physicsCenter = center
	isl.orientation = orientation.Normalized()
	isl.transformDirty = true
	isl.needsPhysicsUpdate = true
}

// GetTransformMatrix returns T(center)*R(orientation), recomputing and
// caching it if the island moved since the last call.
func (isl *Island) GetTransformMatrix() vec.Mat4 {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	if isl.transformDirty {
		isl.cachedTransform = vec.Mat4Translate(isl.physicsCenter).Mul(vec.Mat4FromQuat(isl.orientation))
		isl.transformDirty = false
	}
	return isl.cachedTransform
}

// GetChunkTransform returns the full world transform for a chunk at coord:
// T(center)*R(orientation)*T(coord*ChunkSize).
func (isl *Island) GetChunkTransform(coord vec.Vec3) vec.Mat4 {
	base := isl.GetTransformMatrix()
	offset := vec.Mat4Translate(vec.FromVec3(coord.Mul(ChunkSize)))
	return base.Mul(offset)
}

// NeedsPhysicsUpdate reports whether the island's transform changed since
// the last ClearPhysicsUpdate call.
func (isl *Island) NeedsPhysicsUpdate() bool {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.needsPhysicsUpdate
}

// ClearPhysicsUpdate is called by the (out-of-scope) renderer once it has
// consumed the current transform.
func (isl *Island) ClearPhysicsUpdate() {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.needsPhysicsUpdate = false
}

// State returns the island's idle/piloted state.
func (isl *Island) State() IslandState {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	return isl.state
}

// SetState transitions the island's idle/piloted state machine.
func (isl *Island) SetState(s IslandState) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.state = s
}

// --- Sleeping fluid --------------------------------------------------------

// MarkFluidSleeping records a settled fluid voxel at an island-local
// position so the fluid system's tug-activation scan can find it without
// touching the particle simulation.
func (isl *Island) MarkFluidSleeping(p vec.Vec3) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	isl.sleepingFluid[p] = struct{}{}
}

// ClearFluidSleeping removes a position from the sleeping-fluid set, e.g.
// when it wakes into an active particle.
func (isl *Island) ClearFluidSleeping(p vec.Vec3) {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	delete(isl.sleepingFluid, p)
}

// IsFluidSleeping reports whether a position holds a settled fluid voxel.
func (isl *Island) IsFluidSleeping(p vec.Vec3) bool {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	_, ok := isl.sleepingFluid[p]
	return ok
}

// SleepingFluidNear returns every sleeping-fluid position within radius of
// center (island-local space), for the tug-activation neighbourhood scan.
func (isl *Island) SleepingFluidNear(center vec.Vec3Float, radius float64) []vec.Vec3 {
	isl.mu.RLock()
	defer isl.mu.RUnlock()
	var out []vec.Vec3
	r2 := radius * radius
	for p := range isl.sleepingFluid {
		d := vec.FromVec3(p).Sub(center)
		if d.Dot(d) <= r2 {
			out = append(out, p)
		}
	}
	return out
}
