// Package world implements the voxel world model: chunks with an
// incrementally-maintained surface quad index, islands with a cached rigid
// transform, connectivity analysis for structural splits, and the World
// aggregate that owns all of it for one server (or client) process.
package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

var (
	// ErrInvalidArgument reports a caller-supplied value that is
	// structurally nonsensical (e.g. an unregistered block ID).
	ErrInvalidArgument = fmt.Errorf("world: invalid argument")
	// ErrPreconditionViolation reports an operation attempted against
	// state that does not support it (e.g. writing to an unloaded chunk).
	ErrPreconditionViolation = fmt.Errorf("world: precondition violation")
	// ErrInternal reports a consistency failure in world bookkeeping.
	ErrInternal = fmt.Errorf("world: internal error")
)

// World is the single aggregate owning every island, blueprint, and the
// shared connectivity analyzer for one process — replacing the teacher's
// global WorldManager singleton per spec.md Design Notes §9. A server
// process and a client process each construct exactly one World.
type World struct {
	log *logging.Logger

	mu         sync.RWMutex
	islands    map[IslandID]*Island
	blueprints map[IslandID]IslandBlueprint

	nextID     uint32 // atomic: next IslandID to hand out
	analyzer   *ConnectivityAnalyzer
	activationRadius float64

	// splitQueue maps an island to the positions cleared on it since the
	// last drain. Drained once per tick on the simulation thread only
	// (spec.md §5/§9 — split checks happen at the start of the next tick,
	// not inline with the edit that triggered them).
	splitQueueMu sync.Mutex
	splitQueue   map[IslandID][]vec.Vec3
}

// NewWorld constructs an empty World.
func NewWorld(log *logging.Logger) *World {
	if log == nil {
		log = logging.Default()
	}
	return &World{
		log:              log,
		islands:          make(map[IslandID]*Island),
		blueprints:       make(map[IslandID]IslandBlueprint),
		analyzer:         NewConnectivityAnalyzer(),
		activationRadius: defaultActivationRadius,
		splitQueue:       make(map[IslandID][]vec.Vec3),
	}
}

// defaultActivationRadius is R_activate from spec.md §4.C.
const defaultActivationRadius = 500

// SetActivationRadius overrides the distance within which an unrealised
// island blueprint is voxelised (spec.md §4.C). Callers typically wire
// this from config.WorldConfig.GetActivationRadius() at startup.
func (w *World) SetActivationRadius(radius float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activationRadius = radius
}

// allocID returns a fresh, process-unique IslandID.
func (w *World) allocID() IslandID {
	return IslandID(atomic.AddUint32(&w.nextID, 1))
}

// AddBlueprint registers an unrealised island recipe. ID is filled in if
// zero.
func (w *World) AddBlueprint(bp IslandBlueprint) IslandID {
	w.mu.Lock()
	defer w.mu.Unlock()
	if bp.ID == 0 {
		bp.ID = w.allocID()
	}
	w.blueprints[bp.ID] = bp
	return bp.ID
}

// CreateIsland registers an already-realised island directly (e.g. one
// produced by ExtractFragments after a split), bypassing the blueprint
// stage.
func (w *World) CreateIsland(isl *Island) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if isl.ID == 0 {
		isl.ID = w.allocID()
	}
	w.islands[isl.ID] = isl
}

// Island returns a loaded island by ID, or nil.
func (w *World) Island(id IslandID) *Island {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.islands[id]
}

// Islands returns a snapshot of every currently realised island.
func (w *World) Islands() []*Island {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Island, 0, len(w.islands))
	for _, isl := range w.islands {
		out = append(out, isl)
	}
	return out
}

// ActivateNear realises every blueprint within activationRadius of pos that
// is not already realised, and returns the newly realised islands. Called
// once per tick per connected client (or once for a listen-server's own
// viewpoint) by the orchestrator.
func (w *World) ActivateNear(pos vec.Vec3Float) []*Island {
	w.mu.Lock()
	var toRealise []IslandBlueprint
	for id, bp := range w.blueprints {
		if _, loaded := w.islands[id]; loaded {
			continue
		}
		if bp.Center.DistanceTo(pos) <= w.activationRadius {
			toRealise = append(toRealise, bp)
		}
	}
	w.mu.Unlock()

	if len(toRealise) == 0 {
		return nil
	}

	realised := make([]*Island, 0, len(toRealise))
	for _, bp := range toRealise {
		isl := bp.Realise()
		isl.ID = bp.ID
		w.mu.Lock()
		w.islands[bp.ID] = isl
		w.mu.Unlock()
		realised = append(realised, isl)
		w.log.Info("island realised", "island_id", bp.ID, "chunks", len(isl.Chunks()))
	}
	return realised
}

// GetChunkFromIsland resolves a chunk by island and chunk coordinate.
func (w *World) GetChunkFromIsland(id IslandID, coord vec.Vec3) (*Chunk, error) {
	isl := w.Island(id)
	if isl == nil {
		return nil, fmt.Errorf("%w: island %d not loaded", ErrPreconditionViolation, id)
	}
	c := isl.Chunk(coord)
	if c == nil {
		return nil, fmt.Errorf("%w: chunk %v not loaded on island %d", ErrPreconditionViolation, coord, id)
	}
	return c, nil
}

// AddChunkToIsland installs a chunk, creating it if absent at coord.
func (w *World) AddChunkToIsland(id IslandID, coord vec.Vec3, c *Chunk) error {
	isl := w.Island(id)
	if isl == nil {
		return fmt.Errorf("%w: island %d not loaded", ErrPreconditionViolation, id)
	}
	isl.AddChunk(coord, c)
	return nil
}

// GetVoxelFromIsland reads a voxel by island-local position.
func (w *World) GetVoxelFromIsland(id IslandID, p vec.Vec3) (block.BlockID, error) {
	isl := w.Island(id)
	if isl == nil {
		return block.AirBlockID, fmt.Errorf("%w: island %d not loaded", ErrPreconditionViolation, id)
	}
	return isl.GetVoxel(p), nil
}

// SetVoxelInIsland performs the server-authoritative voxel write. It writes
// through Chunk.Set, which also updates the chunk's incremental quad index
// when EnableQuadIndex has been called on that chunk; there is no data-only
// path that skips the index. Clearing a solid voxel enqueues a split check
// for the owning island. A write of the ID already stored is a no-op that
// returns nil and queues nothing.
func (w *World) SetVoxelInIsland(id IslandID, p vec.Vec3, newID block.BlockID) error {
	isl := w.Island(id)
	if isl == nil {
		return fmt.Errorf("%w: island %d not loaded", ErrPreconditionViolation, id)
	}
	if !block.IsValidBlockID(newID) {
		return fmt.Errorf("%w: block id %d not registered", ErrInvalidArgument, newID)
	}

	old := isl.GetVoxel(p)
	if old == newID {
		return nil
	}
	if !isl.SetVoxel(p, newID) {
		return fmt.Errorf("%w: chunk for %v not loaded on island %d", ErrPreconditionViolation, p, id)
	}

	// A removal of a solid voxel is the only edit that can disconnect the
	// island; queue a split check using the cleared voxel's (still-solid)
	// neighbours as flood-fill seeds.
	if block.IsSolid(old) && !block.IsSolid(newID) {
		w.queueSplitCheck(id, p)
	}
	return nil
}

// SetVoxelWithMesh performs the client/listen-server incremental write. It
// is the same write as SetVoxelInIsland: Chunk.Set keeps the chunk's
// incremental quad index in sync when it is enabled, so local rendering
// stays in sync without waiting on the async mesh pipeline.
func (w *World) SetVoxelWithMesh(id IslandID, p vec.Vec3, newID block.BlockID) error {
	return w.SetVoxelInIsland(id, p, newID)
	// Chunk.Set already performs incremental quad-index maintenance when
	// EnableQuadIndex has been called — SetVoxelInIsland's call to
	// isl.SetVoxel routes through Chunk.Set unconditionally, so no
	// separate mesh-only path is needed here; the split distinguishes
	// intent at the call site (server data authority vs. client mesh
	// consumer), not the underlying mechanism.
}

func (w *World) queueSplitCheck(id IslandID, p vec.Vec3) {
	w.splitQueueMu.Lock()
	defer w.splitQueueMu.Unlock()
	w.splitQueue[id] = append(w.splitQueue[id], p)
}

// DrainSplitChecks runs every queued split check and performs any resulting
// island fragmentation, returning the newly created fragment islands. Must
// be called once per tick, at the start of the tick, on the simulation
// thread only (spec.md §5/§9).
func (w *World) DrainSplitChecks() []*Island {
	w.splitQueueMu.Lock()
	pending := w.splitQueue
	w.splitQueue = make(map[IslandID][]vec.Vec3)
	w.splitQueueMu.Unlock()

	var created []*Island
	for id, cleared := range pending {
		created = append(created, w.checkAndSplit(id, cleared)...)
	}
	return created
}

// checkAndSplit seeds the connectivity check from the solid 6-neighbours of
// every voxel cleared on this island since the last drain (spec.md §4.D:
// "it starts from one solid neighbour of the removed voxel and floods").
// Falling back to a single seed per chunk would miss splits that fit inside
// one chunk, since CheckSplit needs at least two disjoint seeds to prove a
// disconnection exists.
func (w *World) checkAndSplit(id IslandID, cleared []vec.Vec3) []*Island {
	isl := w.Island(id)
	if isl == nil {
		return nil
	}

	seeds := w.neighbourSeeds(isl, cleared)
	if len(seeds) <= 1 {
		return nil
	}

	split, components, truncated := w.analyzer.CheckSplit(isl, seeds)
	if truncated {
		w.log.Warn("connectivity check truncated by budget", "island_id", id)
		return nil
	}
	if !split {
		return nil
	}

	mainIdx, fragments := ExtractFragments(components)
	_ = mainIdx
	created := make([]*Island, 0, len(fragments))
	for _, frag := range fragments {
		newIsl := w.extractFragmentIsland(isl, frag)
		w.CreateIsland(newIsl)
		created = append(created, newIsl)
		w.log.Info("island split", "source_island_id", id, "new_island_id", newIsl.ID, "voxels", len(frag.Voxels))
	}
	return created
}

// neighbourSeeds collects the solid 6-neighbours of every voxel cleared
// since the last drain, deduplicated. These are the only positions that can
// witness a split caused by those clears (spec.md §4.D).
func (w *World) neighbourSeeds(isl *Island, cleared []vec.Vec3) []vec.Vec3 {
	seen := make(map[vec.Vec3]struct{})
	var seeds []vec.Vec3
	for _, p := range cleared {
		for _, n := range p.Neighbors6() {
			if _, ok := seen[n]; ok {
				continue
			}
			if !block.IsSolid(isl.GetVoxel(n)) {
				continue
			}
			seen[n] = struct{}{}
			seeds = append(seeds, n)
		}
	}
	return seeds
}

// extractFragmentIsland builds a brand-new Island from a fragment's voxel
// set, copying voxel data out of the source island's chunks and clearing it
// there, and placing the new island's physics center at the fragment's
// voxel-weighted centroid translated into world space.
func (w *World) extractFragmentIsland(source *Island, frag Fragment) *Island {
	center := source.GetTransformMatrix().TransformPoint(frag.Centroid)
	newIsl := NewIsland(0, center)
	linear, angular := source.Velocities()
	newIsl.SetVelocities(linear, angular)
	newIsl.SetTransform(center, source.Orientation())

	for _, p := range frag.Voxels {
		id := source.GetVoxel(p)
		localP := p.Sub(frag.Centroid.Round())
		coord, local := WorldToLocal(localP)
		c := newIsl.Chunk(coord)
		if c == nil {
			c = NewChunk(coord)
			c.EnableQuadIndex()
			newIsl.AddChunk(coord, c)
		}
		c.SetVec(local, id)
		source.SetVoxel(p, block.AirBlockID)
	}
	return newIsl
}
