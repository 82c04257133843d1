// Package orchestrator runs the fixed-timestep simulation loop: physics,
// kinematics, fluid, and island activation tick at a fixed rate with an
// accumulator, while replication is emitted on its own slower cadence
// outside the fixed step (spec.md §5, §9). Grounded on the teacher's
// tick-driven update-channel pattern, generalized to command queues plus a
// fixed-step accumulator instead of the teacher's per-frame direct calls.
package orchestrator

import (
	"sync"
	"time"

	"github.com/skyforge-mmo/skyforge/internal/fluid"
	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/physics"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// FixedDT is the canonical simulation step at 60Hz.
const FixedDT = 1.0 / 60.0

// MaxFrameDT bounds a single Run loop iteration's wall-clock delta, so a
// long stall (GC pause, debugger break) cannot cause a catch-up burst of
// hundreds of fixed steps in one Run call.
const MaxFrameDT = 0.25

// ReplicationRateHz is the cadence entity state broadcasts go out at,
// independent of the simulation's own fixed-step rate (spec.md §4.G).
const ReplicationRateHz = 10

// Command is a single deferred mutation enqueued from network I/O, applied
// on the simulation thread at the start of the next fixed step. Network
// goroutines must never call World/Island methods directly — only enqueue
// a Command (spec.md §5).
type Command func(w *world.World)

// EntitySnapshot is what Orchestrator hands to a replication sink once per
// ReplicationRateHz tick, for the caller (the server's network layer) to
// encode into protocol.EntityStateUpdate messages.
type EntitySnapshot struct {
	IslandID        world.IslandID
	Position        vec.Vec3Float
	Velocity        vec.Vec3Float
	Acceleration    vec.Vec3Float
	Orientation     vec.Quat
	AngularVelocity vec.Vec3Float
	Grounded        bool
}

// Orchestrator drives one World's fixed-step simulation loop: it applies
// queued commands, advances physics/kinematics/fluid, activates nearby
// blueprints, and drains structural split checks once per tick, then emits
// replication snapshots on its own slower cadence.
type Orchestrator struct {
	log    *logging.Logger
	World  *world.World
	Fluid  *fluid.System

	dt float64

	commandsMu sync.Mutex
	commands   []Command

	accumulator       float64
	sinceReplication  float64
	replicationPeriod float64

	OnReplicate func(snapshots []EntitySnapshot)
	OnSplit     func(newIslands []*world.Island)

	// viewpoints are positions blueprints are activated around each tick
	// (e.g. every connected player's last known position). The caller
	// maintains this list; an empty list means no new blueprints realise.
	viewpointsMu sync.Mutex
	viewpoints   []vec.Vec3Float
}

// New constructs an Orchestrator for w, ticking at the canonical 60Hz fixed
// step.
func New(w *world.World, fl *fluid.System, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.GetWorldLogger()
	}
	return &Orchestrator{
		log:               log,
		World:             w,
		Fluid:             fl,
		dt:                FixedDT,
		replicationPeriod: 1.0 / ReplicationRateHz,
	}
}

// Enqueue defers a world mutation to the start of the next fixed step. Safe
// to call from any goroutine (network I/O, test code).
func (o *Orchestrator) Enqueue(cmd Command) {
	o.commandsMu.Lock()
	o.commands = append(o.commands, cmd)
	o.commandsMu.Unlock()
}

// SetViewpoints replaces the whole list of positions that nearby blueprints
// are activated around on each step (e.g. every connected player's last
// known position).
func (o *Orchestrator) SetViewpoints(positions []vec.Vec3Float) {
	o.viewpointsMu.Lock()
	o.viewpoints = positions
	o.viewpointsMu.Unlock()
}

// Advance runs as many fixed steps as frameDT (clamped to MaxFrameDT)
// accumulates, draining commands and split checks once per step. Call this
// once per Run loop iteration, or directly from a test with a synthetic
// frameDT.
func (o *Orchestrator) Advance(frameDT float64) {
	if frameDT > MaxFrameDT {
		frameDT = MaxFrameDT
	}
	o.accumulator += frameDT
	o.sinceReplication += frameDT

	for o.accumulator >= o.dt {
		o.step()
		o.accumulator -= o.dt
	}

	if o.sinceReplication >= o.replicationPeriod {
		o.sinceReplication -= o.replicationPeriod
		o.replicate()
	}
}

// step performs exactly one fixed-step tick: split checks (queued by the
// previous tick's edits), queued commands, physics/kinematics integration,
// fluid update, and blueprint activation.
func (o *Orchestrator) step() {
	if created := o.World.DrainSplitChecks(); len(created) > 0 && o.OnSplit != nil {
		o.OnSplit(created)
	}

	o.commandsMu.Lock()
	cmds := o.commands
	o.commands = nil
	o.commandsMu.Unlock()
	for _, cmd := range cmds {
		cmd(o.World)
	}

	for _, isl := range o.World.Islands() {
		isl.Integrate(o.dt)
	}

	if o.Fluid != nil {
		islandByID := make(map[uint32]fluid.IslandAccess)
		for _, isl := range o.World.Islands() {
			islandByID[uint32(isl.ID)] = isl
		}
		o.Fluid.Tick(o.dt, func(id uint32) fluid.IslandAccess { return islandByID[id] })
	}

	o.viewpointsMu.Lock()
	viewpoints := o.viewpoints
	o.viewpointsMu.Unlock()
	for _, pos := range viewpoints {
		o.World.ActivateNear(pos)
	}
}

// replicate builds one EntitySnapshot per island and hands them to
// OnReplicate, if set. No ground detection runs here, so Grounded is
// always false in these snapshots.
func (o *Orchestrator) replicate() {
	if o.OnReplicate == nil {
		return
	}
	islands := o.World.Islands()
	snapshots := make([]EntitySnapshot, 0, len(islands))
	for _, isl := range islands {
		linear, angular := isl.Velocities()
		linAccel, _ := isl.Accelerations()
		snapshots = append(snapshots, EntitySnapshot{
			IslandID:        isl.ID,
			Position:        isl.PhysicsCenter(),
			Velocity:        linear,
			Acceleration:    linAccel,
			Orientation:     isl.Orientation(),
			AngularVelocity: angular,
		})
	}
	o.OnReplicate(snapshots)
}

// Run drives Advance in a loop using wall-clock time until stop is
// closed, sleeping between iterations to approximate the fixed tick
// rate without busy-waiting.
func (o *Orchestrator) Run(stop <-chan struct{}) {
	last := time.Now()
	ticker := time.NewTicker(time.Duration(o.dt * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			frameDT := now.Sub(last).Seconds()
			last = now
			o.Advance(frameDT)
		}
	}
}

// VoxelQueryFor returns a physics.VoxelQuery closure bound to one island,
// for constructing a physics.Resolver per-island.
func VoxelQueryFor(isl *world.Island) physics.VoxelQuery {
	return func(p vec.Vec3) bool {
		return block.IsSolid(isl.GetVoxel(p))
	}
}
