package fluid

import (
	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

// IslandAccess is the subset of *world.Island the fluid system needs: voxel
// read/write and the sleeping-fluid position index. Narrowed to an
// interface so tests can fake an island without constructing a full one.
type IslandAccess interface {
	GetVoxel(p vec.Vec3) block.BlockID
	SetVoxel(p vec.Vec3, id block.BlockID) bool
	MarkFluidSleeping(p vec.Vec3)
	ClearFluidSleeping(p vec.Vec3)
	IsFluidSleeping(p vec.Vec3) bool
	SleepingFluidNear(center vec.Vec3Float, radius float64) []vec.Vec3
}

// System owns every active/settling particle for one World and performs
// tug activation, pathfinding, and settling. One System is shared across
// all islands; particles carry their own IslandID.
type System struct {
	log      *logging.Logger
	settings Settings

	nextID    uint64
	particles map[ParticleID]*Particle

	wokenThisTick int
}

// NewSystem constructs a fluid System with the given settings (zero value
// Settings{} is invalid — callers should start from DefaultSettings()).
func NewSystem(settings Settings, log *logging.Logger) *System {
	if log == nil {
		log = logging.GetFluidLogger()
	}
	return &System{
		settings:  settings,
		log:       log,
		particles: make(map[ParticleID]*Particle),
	}
}

// ActiveCount returns the number of currently simulated particles.
func (s *System) ActiveCount() int { return len(s.particles) }

// WakeVoxel converts a sleeping WATER voxel at p into an active particle
// and returns it, or nil if p was not a sleeping fluid voxel or the active
// particle cap has been reached.
func (s *System) WakeVoxel(isl IslandAccess, islandID uint32, p vec.Vec3, tugStrength float64, chainDepth int) *Particle {
	if len(s.particles) >= s.settings.MaxActiveParticles {
		return nil
	}
	if !isl.IsFluidSleeping(p) {
		return nil
	}
	if !isl.SetVoxel(p, block.AirBlockID) {
		return nil
	}
	isl.ClearFluidSleeping(p)

	s.nextID++
	particle := &Particle{
		ID:            ParticleID(s.nextID),
		state:         StateActive,
		IslandID:      islandID,
		Position:      vec.FromVec3(p).Add(vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}),
		OriginalVoxel: p,
		TugStrength:   tugStrength,
		ChainDepth:    chainDepth,
	}
	particle.WatchedWater = s.collectWatched(isl, particle.Position)
	s.particles[particle.ID] = particle
	return particle
}

// collectWatched gathers the sleeping water-voxel positions within
// TugRadius of center, for a newly woken particle's watched list (spec.md
// §4.F: "collected at birth within tugRadius blocks").
func (s *System) collectWatched(isl IslandAccess, center vec.Vec3Float) []vec.Vec3 {
	return isl.SleepingFluidNear(center, s.settings.TugRadius)
}

// TriggerActivation wakes the sleeping fluid voxels within tugRadius of a
// disturbance (e.g. a block break near standing water) and recursively
// propagates the tug to their own neighbours, up to MaxTugChainDepth and
// MaxParticlesPerFrame (spec.md §4.D).
func (s *System) TriggerActivation(isl IslandAccess, islandID uint32, center vec.Vec3Float, force float64) {
	s.wokenThisTick = 0
	s.propagateTug(isl, islandID, center, force, 0)
}

func (s *System) propagateTug(isl IslandAccess, islandID uint32, center vec.Vec3Float, force float64, chainDepth int) {
	if chainDepth >= s.settings.MaxTugChainDepth {
		return
	}
	if s.wokenThisTick >= s.settings.MaxParticlesPerFrame {
		return
	}

	nearby := isl.SleepingFluidNear(center, s.settings.TugRadius)
	for _, p := range nearby {
		if s.wokenThisTick >= s.settings.MaxParticlesPerFrame {
			return
		}
		particle := s.WakeVoxel(isl, islandID, p, force, chainDepth+1)
		if particle == nil {
			continue
		}
		s.wokenThisTick++
		s.log.Debug("fluid voxel woken", "island_id", islandID, "pos", p, "chain_depth", chainDepth+1)
		s.propagateTug(isl, islandID, particle.Position, force*0.8, chainDepth+1)
	}
}

// tugWatched is the primary tug-activation path (spec.md §4.F): for each
// watched voxel position, if the particle has travelled more than
// TugDistance from it and the voxel is still water, wake it. Distance is
// measured the same way SleepingFluidNear measures radius: the particle's
// continuous position against the voxel's raw integer coordinates. Woken
// (or no-longer-water) watches are dropped from the list; a watch within
// TugDistance is kept for future ticks. Bound by MaxParticlesPerFrame
// through wokenThisTick; Tick resets that counter at its start and
// TriggerActivation resets it at the start of each call, so each
// TriggerActivation call and each Tick's tug pass get their own
// MaxParticlesPerFrame budget. Watches over the budget are deferred to a
// later tick.
func (s *System) tugWatched(isl IslandAccess, p *Particle) {
	if len(p.WatchedWater) == 0 {
		return
	}
	remaining := p.WatchedWater[:0]
	for _, watched := range p.WatchedWater {
		if p.Position.DistanceTo(vec.FromVec3(watched)) <= s.settings.TugDistance {
			remaining = append(remaining, watched)
			continue
		}
		if isl.GetVoxel(watched) != block.WaterBlockID {
			continue // stale watch: already changed by some other path
		}
		if s.wokenThisTick >= s.settings.MaxParticlesPerFrame {
			remaining = append(remaining, watched) // deferred to a later tick
			continue
		}
		woken := s.WakeVoxel(isl, p.IslandID, watched, p.TugStrength, p.ChainDepth+1)
		if woken == nil {
			remaining = append(remaining, watched)
			continue
		}
		s.wokenThisTick++
		s.log.Debug("fluid voxel tugged awake", "island_id", p.IslandID, "pos", watched, "chain_depth", woken.ChainDepth)
	}
	p.WatchedWater = remaining
}

// Tick advances every active/settling particle by dt: pathfinding toward a
// lower resting spot, horizontal nudging toward the target column, and
// settling back into a sleeping voxel once a stable target is reached.
func (s *System) Tick(dt float64, islandOf func(id uint32) IslandAccess) {
	s.wokenThisTick = 0
	var toSleep []ParticleID

	for id, p := range s.particles {
		isl := islandOf(p.IslandID)
		if isl == nil {
			continue
		}
		p.AliveTicks++

		switch p.state {
		case StateActive:
			s.tugWatched(isl, p)
			s.updatePathfinding(isl, p)
			s.stepTowardTarget(p, dt)
			if s.reachedTarget(p) {
				p.state = StateSettling
			}
		case StateSettling:
			if s.trySettle(isl, p) {
				toSleep = append(toSleep, id)
			} else {
				p.state = StateActive // a lower spot exists, resume pathfinding
			}
		}
	}

	for _, id := range toSleep {
		delete(s.particles, id)
	}
}

// updatePathfinding examines the particle's current column and its four
// horizontal neighbours, probing downward under each to find its ground
// level, and commits to whichever is strictly lower than the current
// target by more than 0.05 (spec.md §4.F: "examine the four horizontal
// neighbours... probe downward... pick the one whose ground is strictly
// lower"). Once committed, the target only ever moves further down, never
// sideways or up.
func (s *System) updatePathfinding(isl IslandAccess, p *Particle) {
	here := p.Position.Floor()
	bestY := s.groundBelow(isl, here)
	best := vec.Vec3{X: here.X, Y: bestY, Z: here.Z}
	if n, ok := s.lowerNeighbour(isl, here, bestY); ok {
		best, bestY = n, n.Y
	}

	if !p.HasTarget {
		p.TargetGridPos = best
		p.HasTarget = true
		return
	}
	if float64(p.TargetGridPos.Y-bestY) > 0.05 {
		p.TargetGridPos = best
	}
}

// lowerNeighbour checks the four horizontal neighbours of here and returns
// whichever has the lowest probed ground, provided it is strictly lower
// than baseline by more than 0.05. A neighbour whose cell at here's height
// is itself solid is not a candidate (nothing can flow into solid rock).
func (s *System) lowerNeighbour(isl IslandAccess, here vec.Vec3, baseline int) (vec.Vec3, bool) {
	found := false
	var best vec.Vec3
	bestY := baseline
	for _, dir := range [4]vec.Vec3{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}} {
		neighbor := vec.Vec3{X: here.X + dir.X, Y: here.Y, Z: here.Z + dir.Z}
		if block.IsSolid(isl.GetVoxel(neighbor)) {
			continue // neighbouring column is blocked at this height
		}
		groundY := s.groundBelow(isl, neighbor)
		if float64(groundY) < float64(bestY)-0.05 {
			bestY = groundY
			best = vec.Vec3{X: neighbor.X, Y: groundY, Z: neighbor.Z}
			found = true
		}
	}
	return best, found
}

// groundBelow probes straight down from col, up to ProbeDepthVoxels, and
// returns the Y of the lowest open voxel directly above solid ground (or
// the Y of the deepest probe, col.Y-ProbeDepthVoxels, if the column stays
// open for the whole probe depth).
func (s *System) groundBelow(isl IslandAccess, col vec.Vec3) int {
	y := col.Y
	for dy := 1; dy <= s.settings.ProbeDepthVoxels; dy++ {
		probe := vec.Vec3{X: col.X, Y: col.Y - dy, Z: col.Z}
		if block.IsSolid(isl.GetVoxel(probe)) {
			break
		}
		y = probe.Y
	}
	return y
}

func (s *System) stepTowardTarget(p *Particle, dt float64) {
	targetCenter := vec.FromVec3(p.TargetGridPos).Add(vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5})
	toTarget := targetCenter.Sub(p.Position)
	horizontal := toTarget.WithY(0)

	if horizontal.Length() < 0.1 {
		p.Velocity = p.Velocity.WithY(p.Velocity.Y)
	} else {
		dir := horizontal.Normalized()
		p.Velocity = vec.Vec3Float{X: dir.X * s.settings.HorizontalForce, Y: p.Velocity.Y, Z: dir.Z * s.settings.HorizontalForce}
	}

	// Vertical: free-fall toward the target column, never upward.
	if toTarget.Y < -0.05 {
		p.Velocity.Y -= 9.81 * dt
	} else {
		p.Velocity.Y = 0
	}

	p.Position = p.Position.Add(p.Velocity.Mul(dt))
}

func (s *System) reachedTarget(p *Particle) bool {
	targetCenter := vec.FromVec3(p.TargetGridPos).Add(vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5})
	return p.Position.DistanceTo(targetCenter) <= s.settings.GridSnapDistance
}

// trySettle re-checks the four horizontal neighbours one more time before
// finalizing: if a strictly lower resting spot still exists, settling is
// deferred and the particle resumes pathfinding toward it instead (spec.md
// §4.F: "after settling on step 1 it repeats until reaching the lowest
// plateau, then sleeps"). Only once no lower neighbour remains does it
// re-probe the target column (geometry may have changed since pathfinding
// last ran) and, if still valid open air, snap the particle back into a
// sleeping WATER voxel. If the target is no longer air (something else
// moved in), the particle is destroyed rather than sleeping into occupied
// space, per spec.md §4.D settling rule.
func (s *System) trySettle(isl IslandAccess, p *Particle) bool {
	ownGround := s.groundBelow(isl, p.TargetGridPos)
	if _, ok := s.lowerNeighbour(isl, p.TargetGridPos, ownGround); ok {
		return false
	}
	if isl.GetVoxel(p.TargetGridPos) != block.AirBlockID {
		delete(s.particles, p.ID)
		return true
	}
	isl.SetVoxel(p.TargetGridPos, block.WaterBlockID)
	isl.MarkFluidSleeping(p.TargetGridPos)
	s.log.Debug("fluid particle settled", "island_id", p.IslandID, "pos", p.TargetGridPos)
	return true
}
