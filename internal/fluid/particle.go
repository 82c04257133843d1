// Package fluid implements the sleeping-voxel/active-particle hybrid fluid
// system: a settled body of water is stored as ordinary WATER voxels in an
// island's chunks, and only the voxels disturbed by a nearby edit wake into
// simulated particles. Grounded on
// _examples/original_source/engine/World/FluidSystem.{h,cpp} and
// FluidComponents.h, reimplemented against the Go World/Island model
// instead of the original's ECS.
package fluid

import "github.com/skyforge-mmo/skyforge/internal/vec"

// State is a fluid particle's lifecycle stage.
type State int

const (
	StateSleeping State = iota // stored as a WATER voxel, not simulated
	StateActive                // simulated as a free-moving particle
	StateSettling              // re-probing a grid position to sleep again
)

// Settings holds the fluid system's tunable constants. Field names and
// default values are grounded on the original's FluidSettings struct; the
// chain-depth cap is an addition over the distilled spec (see DESIGN.md).
type Settings struct {
	TugRadius           float64
	TugDistance         float64
	MaxTugChainDepth    int
	MaxActiveParticles  int
	MaxParticlesPerFrame int
	ParticleRadius      float64
	GridSnapDistance    float64
	HorizontalForce     float64
	ProbeDepthVoxels    int
}

// DefaultSettings returns the constants the original implementation ships
// with.
func DefaultSettings() Settings {
	return Settings{
		TugRadius:             1.0,
		TugDistance:           0.5,
		MaxTugChainDepth:      10,
		MaxActiveParticles:    1000,
		MaxParticlesPerFrame:  50,
		ParticleRadius:        0.4,
		GridSnapDistance:      0.15,
		HorizontalForce:       3.0,
		ProbeDepthVoxels:      10,
	}
}

// ParticleID identifies an active fluid particle within one System.
type ParticleID uint64

// Particle is one simulated water particle: the active-lifecycle
// counterpart to a sleeping WATER voxel.
type Particle struct {
	ID    ParticleID
	state State

	IslandID      uint32
	Position      vec.Vec3Float // island-local, continuous
	Velocity      vec.Vec3Float
	OriginalVoxel vec.Vec3 // where it woke from
	TargetGridPos vec.Vec3
	HasTarget     bool
	TugStrength   float64
	ChainDepth    int
	AliveTicks    int

	// WatchedWater is the list of sleeping water-voxel positions collected
	// at birth within TugRadius (spec.md §4.F). Each tick the particle
	// checks whether it has travelled more than TugDistance from any one
	// of these and, if so, wakes it (the "tug" path — distinct from
	// TriggerActivation's "break a block next to water" proximity path).
	WatchedWater []vec.Vec3
}

// Lifecycle returns the particle's current lifecycle stage.
func (p *Particle) Lifecycle() State { return p.state }
