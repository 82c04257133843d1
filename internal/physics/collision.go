// Package physics resolves entity movement against an island's voxel
// geometry: capsule collision for players, sphere collision for fluid
// particles, per-axis substepping, step-up, and ground detection. Grounded
// on the teacher's point-sampling collision style (CanMoveToPosition
// against a blockChecker callback) generalized from 2D box colliders to 3D
// capsule/sphere shapes against a voxel grid.
package physics

import (
	"math"

	"github.com/skyforge-mmo/skyforge/internal/vec"
)

// VoxelQuery resolves whether island-local position p is solid. Physics
// never imports the world package directly — it is handed a query closure
// so it stays usable against a test fixture without a full World/Island.
type VoxelQuery func(p vec.Vec3) bool

const (
	// maxSubsteps bounds the Y-X-Z axis-priority substep loop per Resolve
	// call, so a single large movement vector (e.g. after a network
	// hitch) cannot spin the resolver indefinitely.
	maxSubsteps = 4

	// defaultStepHeightRatio is the fraction of a capsule's height that
	// may be auto-stepped-up in a single resolve call (a stair/curb).
	defaultStepHeightRatio = 0.4

	// antiStuckMaxPush caps how far a single Resolve call may push an
	// entity out of embedded geometry, so a badly-overlapping spawn does
	// not teleport the entity across the island in one tick.
	antiStuckMaxPush = 0.5
)

// Capsule is a vertical capsule collider: a cylinder of Radius and Height
// capped by hemispheres, anchored at its bottom-center.
type Capsule struct {
	Radius float64
	Height float64
}

// Sphere is a point-radius collider used for fluid particles.
type Sphere struct {
	Radius float64
}

// GroundInfo reports what, if anything, an entity is standing on.
type GroundInfo struct {
	Grounded     bool
	Normal       vec.Vec3Float
	GroundVel    vec.Vec3Float // velocity of the surface point (linear + angular x offset), for riding a moving island
	ContactPoint vec.Vec3Float
	Distance     float64
}

// Resolver resolves movement for one island's voxel grid.
type Resolver struct {
	Query             VoxelQuery
	StepHeightRatio   float64
}

// NewResolver returns a Resolver with the default step height ratio.
func NewResolver(query VoxelQuery) *Resolver {
	return &Resolver{Query: query, StepHeightRatio: defaultStepHeightRatio}
}

// ResolveCapsuleMovement attempts to move a capsule from pos by delta,
// substepping one axis at a time in Y, X, Z priority order (gravity/step-up
// resolved before horizontal slide, matching the teacher's screen-space
// axis-ordering convention generalized to 3D), and reports per axis whether
// that axis's move stayed blocked. An axis counts as blocked only when no
// halved substep of its move was free; an axis that advanced part of the
// way is reported as not blocked. It takes no velocity and changes none.
// It also performs step-up: if a purely
// horizontal move is blocked but the same move succeeds after lifting the
// capsule by up to StepHeightRatio*Height, the lifted position is used.
func (r *Resolver) ResolveCapsuleMovement(pos vec.Vec3Float, capsule Capsule, delta vec.Vec3Float) (newPos vec.Vec3Float, blocked [3]bool) {
	pos = r.unembed(pos, capsule)

	// Y axis first.
	pos, blockedY := r.moveAxis(pos, capsule, vec.Vec3Float{Y: delta.Y})
	// X axis, with step-up if blocked.
	pos, blockedX := r.moveAxisWithStepUp(pos, capsule, vec.Vec3Float{X: delta.X})
	// Z axis, with step-up if blocked.
	pos, blockedZ := r.moveAxisWithStepUp(pos, capsule, vec.Vec3Float{Z: delta.Z})

	return pos, [3]bool{blockedX, blockedY, blockedZ}
}

// ResolveSphereMovement is ResolveCapsuleMovement's sphere-collider
// counterpart, used for non-fluid particle-like entities; fluid particles
// use ResolveFluidMovement instead, which skips collision entirely while
// phasing toward a target.
func (r *Resolver) ResolveSphereMovement(pos vec.Vec3Float, s Sphere, delta vec.Vec3Float) (newPos vec.Vec3Float, blocked [3]bool) {
	asCapsule := Capsule{Radius: s.Radius, Height: s.Radius * 2}
	return r.ResolveCapsuleMovement(pos, asCapsule, delta)
}

// ResolveFluidMovement moves a fluid particle toward target without
// step-up or collision blocking (it phases through solid voxels that are
// not its own target path) — the fluid pathfinder is responsible for never
// proposing a blocked target (spec.md §4.D).
func (r *Resolver) ResolveFluidMovement(pos vec.Vec3Float, delta vec.Vec3Float) vec.Vec3Float {
	return pos.Add(delta)
}

func (r *Resolver) moveAxisWithStepUp(pos vec.Vec3Float, capsule Capsule, delta vec.Vec3Float) (vec.Vec3Float, bool) {
	moved, blocked := r.moveAxis(pos, capsule, delta)
	if !blocked {
		return moved, false
	}

	stepHeight := capsule.Height * r.clampedStepRatio()
	lifted := vec.Vec3Float{X: pos.X, Y: pos.Y + stepHeight, Z: pos.Z}
	if r.collidesAt(lifted, capsule) {
		return moved, true // can't even stand at the lifted height
	}
	steppedMove, steppedBlocked := r.moveAxis(lifted, capsule, delta)
	if steppedBlocked {
		return moved, true
	}
	// Settle back down onto the surface at the new horizontal position.
	settled, _ := r.moveAxis(steppedMove, capsule, vec.Vec3Float{Y: -stepHeight})
	return settled, false
}

func (r *Resolver) clampedStepRatio() float64 {
	if r.StepHeightRatio <= 0 {
		return defaultStepHeightRatio
	}
	return r.StepHeightRatio
}

// moveAxis substeps a single-axis delta, halving the remaining distance
// each time a collision is hit, up to maxSubsteps, to avoid poking through
// thin geometry at high speed.
func (r *Resolver) moveAxis(pos vec.Vec3Float, capsule Capsule, delta vec.Vec3Float) (vec.Vec3Float, bool) {
	if delta.X == 0 && delta.Y == 0 && delta.Z == 0 {
		return pos, false
	}
	remaining := delta
	cur := pos
	for step := 0; step < maxSubsteps; step++ {
		candidate := cur.Add(remaining)
		if !r.collidesAt(candidate, capsule) {
			return candidate, false
		}
		remaining = remaining.Mul(0.5)
		if remaining.Length() < 1e-4 {
			return cur, true
		}
	}
	return cur, true
}

// unembed pushes pos out of solid geometry if it starts embedded, capped to
// antiStuckMaxPush per call so a degenerate spawn position cannot cause a
// large teleport.
func (r *Resolver) unembed(pos vec.Vec3Float, capsule Capsule) vec.Vec3Float {
	if !r.collidesAt(pos, capsule) {
		return pos
	}
	push := vec.Vec3Float{Y: 1} // prefer pushing straight up
	moved := pos
	pushed := 0.0
	for pushed < antiStuckMaxPush {
		step := math.Min(0.05, antiStuckMaxPush-pushed)
		candidate := moved.Add(push.Mul(step))
		if !r.collidesAt(candidate, capsule) {
			return candidate
		}
		moved = candidate
		pushed += step
	}
	return moved
}

// collidesAt samples the capsule's footprint against the voxel grid:
// bottom, middle, and top rings at the capsule radius, plus the center
// column — a bounded point sample rather than exact swept geometry,
// matching the teacher's point-sampling collision style.
func (r *Resolver) collidesAt(center vec.Vec3Float, capsule Capsule) bool {
	samples := capsuleSamplePoints(center, capsule)
	for _, p := range samples {
		if r.Query(p.Floor()) {
			return true
		}
	}
	return false
}

func capsuleSamplePoints(center vec.Vec3Float, capsule Capsule) []vec.Vec3Float {
	r := capsule.Radius
	heights := []float64{0.05, capsule.Height / 2, capsule.Height - 0.05}
	offsets := []vec.Vec3Float{
		{}, {X: r}, {X: -r}, {Z: r}, {Z: -r},
	}
	points := make([]vec.Vec3Float, 0, len(heights)*len(offsets))
	for _, h := range heights {
		for _, off := range offsets {
			points = append(points, vec.Vec3Float{X: center.X + off.X, Y: center.Y + h, Z: center.Z + off.Z})
		}
	}
	return points
}

// DetectGroundCapsule probes directly beneath a capsule's base for solid
// ground and reports contact details, including the ground's own velocity
// (so an entity can inherit a moving island's motion) via groundVel.
func (r *Resolver) DetectGroundCapsule(pos vec.Vec3Float, capsule Capsule, groundVelAt func(contact vec.Vec3Float) vec.Vec3Float) GroundInfo {
	const probeDistance = 0.15
	base := pos
	probe := vec.Vec3Float{X: base.X, Y: base.Y - probeDistance, Z: base.Z}
	if !r.collidesAtPoint(probe, capsule.Radius) {
		return GroundInfo{Grounded: false}
	}
	contact := vec.Vec3Float{X: base.X, Y: math.Floor(base.Y-probeDistance) + 1, Z: base.Z}
	var gv vec.Vec3Float
	if groundVelAt != nil {
		gv = groundVelAt(contact)
	}
	return GroundInfo{
		Grounded:     true,
		Normal:       vec.Vec3Float{Y: 1},
		GroundVel:    gv,
		ContactPoint: contact,
		Distance:     base.Y - contact.Y,
	}
}

func (r *Resolver) collidesAtPoint(p vec.Vec3Float, radius float64) bool {
	offsets := []vec.Vec3Float{{}, {X: radius}, {X: -radius}, {Z: radius}, {Z: -radius}}
	for _, off := range offsets {
		sample := vec.Vec3Float{X: p.X + off.X, Y: p.Y, Z: p.Z + off.Z}
		if r.Query(sample.Floor()) {
			return true
		}
	}
	return false
}
