// Package protocol implements the wire codec for client<->server
// messages: a 1-byte version prefix, a 1-byte message tag, and a
// fixed-width little-endian payload per tag. Grounded on
// _examples/original_source/engine/Network/NetworkMessages.h's packed
// struct layout, reimplemented with encoding/binary instead of C struct
// packing (spec.md Open Question 1 / REDESIGN FLAG: the original's
// platform-packed structs are not a portable wire format, so this package
// defines an explicit field order and fixed width per tag instead).
package protocol

import "fmt"

// Version is the wire protocol version prefix written before every
// message. Bumped whenever a tag's payload layout changes incompatibly.
const Version uint8 = 1

// Tag identifies a message type. Numbering matches the original
// implementation's NetworkMessageType enum so the grounding is traceable
// tag-for-tag; HelloWorld/ChatMessage/CompressedIslandData (tags 1, 4, 6)
// are superseded by this spec's scope and not wired (see DESIGN.md) —
// their numbers are left unused rather than renumbered.
type Tag uint8

const (
	TagPlayerMovementRequest Tag = 2
	TagPlayerPositionUpdate  Tag = 3
	TagWorldState            Tag = 5
	TagCompressedChunkData   Tag = 7
	TagVoxelChangeRequest    Tag = 8
	TagVoxelChangeUpdate     Tag = 9
	TagEntityStateUpdate     Tag = 10
	TagPilotingInput         Tag = 11
	TagFluidParticleSpawn    Tag = 12
	TagFluidParticleUpdate   Tag = 13
	TagFluidParticleDespawn  Tag = 14
)

// MaxWorldStateIslands caps the fixed-size island position snapshot
// carried by a WorldState message (spec.md §6 lists exactly three
// positions in the payload; this is the handshake's initial-islands
// hint, not a full island listing — see CompressedChunkData for that).
const MaxWorldStateIslands = 3

// MaxCompressedChunkSize bounds a single compressed chunk payload (32 MiB,
// matching the original's MAX_COMPRESSED_CHUNK_SIZE) so a malformed or
// hostile length field cannot trigger an unbounded allocation on decode.
const MaxCompressedChunkSize = 32 * 1024 * 1024

// MaxFluidParticlesPerUpdate bounds a single bulk fluid update message.
const MaxFluidParticlesPerUpdate = 64

// ErrUnsupportedVersion is returned when decoding a message whose version
// prefix this build does not understand.
var ErrUnsupportedVersion = fmt.Errorf("protocol: unsupported version")

// ErrTruncated is returned when a buffer ends before a fixed-width field
// it should contain.
var ErrTruncated = fmt.Errorf("protocol: truncated message")

// ErrPayloadTooLarge is returned when a length-prefixed field in a message
// exceeds its maximum (MaxCompressedChunkSize, MaxFluidParticlesPerUpdate).
var ErrPayloadTooLarge = fmt.Errorf("protocol: payload exceeds maximum size")

// Vec3Wire is the fixed-width wire representation of a 3-float vector:
// three little-endian float32 values, 12 bytes.
type Vec3Wire struct {
	X, Y, Z float32
}

// PlayerMovementRequest is tag 2: client -> server optimistic movement
// input, keyed by the client's monotonic SequenceNumber for later
// reconciliation.
type PlayerMovementRequest struct {
	SequenceNumber    uint32
	IntendedPosition  Vec3Wire
	Velocity          Vec3Wire
	DeltaTime         float32
}

// PlayerPositionUpdate is tag 3: server -> client authoritative position,
// echoing the sequence number it reconciles.
type PlayerPositionUpdate struct {
	PlayerID       uint32
	SequenceNumber uint32
	Position       Vec3Wire
	Velocity       Vec3Wire
}

// WorldState is tag 5: server -> client, sent once on connect to tell a
// newly joined client roughly where the world's islands are and where to
// spawn its player, ahead of the per-chunk CompressedChunkData stream.
type WorldState struct {
	NumIslands  uint32
	Positions   [MaxWorldStateIslands]Vec3Wire
	PlayerSpawn Vec3Wire
}

// CompressedChunkHeader is tag 7's fixed header; the zstd-compressed voxel
// payload (CompressedSize bytes) follows immediately after it in the
// message body.
type CompressedChunkHeader struct {
	IslandID       uint32
	ChunkCoord     Vec3Wire
	IslandPosition Vec3Wire
	OriginalSize   uint32
	CompressedSize uint32
}

// VoxelChangeRequest is tag 8: client -> server, "place or break this
// voxel", keyed by SequenceNumber for the pending-prediction table.
type VoxelChangeRequest struct {
	SequenceNumber uint32
	IslandID       uint32
	LocalPos       Vec3Wire
	VoxelType      uint8
}

// VoxelChangeUpdate is tag 9: server -> all clients, the authoritative
// result of a voxel change (including ones the server itself originated,
// e.g. a split-triggered clear).
type VoxelChangeUpdate struct {
	SequenceNumber uint32
	IslandID       uint32
	LocalPos       Vec3Wire
	VoxelType      uint8
	AuthorPlayerID uint32
}

// EntityFlags are bit flags carried by EntityStateUpdate.
type EntityFlags uint8

const (
	EntityFlagGrounded         EntityFlags = 1 << 0
	EntityFlagNeedsCorrection  EntityFlags = 1 << 1
)

// EntityType distinguishes what kind of entity an EntityStateUpdate
// describes.
type EntityType uint8

const (
	EntityTypePlayer EntityType = 0
	EntityTypeIsland EntityType = 1
	EntityTypeNPC    EntityType = 2
)

// EntityStateUpdate is tag 10: the unified 10 Hz replication message used
// for players, islands, and NPCs alike.
type EntityStateUpdate struct {
	SequenceNumber  uint32
	EntityID        uint32
	EntityType      EntityType
	Position        Vec3Wire
	Velocity        Vec3Wire
	Acceleration    Vec3Wire
	Rotation        Vec3Wire // Euler angles, radians
	AngularVelocity Vec3Wire
	ServerTimestamp uint32
	Flags           EntityFlags
}

// PilotingInput is tag 11: client -> server, server-authoritative input
// for the island the sending client is piloting.
type PilotingInput struct {
	SequenceNumber uint32
	IslandID       uint32
	ThrustY        float32
	RotationPitch  float32
	RotationYaw    float32
	RotationRoll   float32
}

// FluidParticleSpawn is tag 12: server -> client, a sleeping voxel woke
// into an active particle.
type FluidParticleSpawn struct {
	EntityID        uint32
	IslandID        uint32
	WorldPosition   Vec3Wire
	Velocity        Vec3Wire
	OriginalVoxelPos Vec3Wire
}

// FluidParticleStateWire is one entry of a FluidParticleUpdate's body.
type FluidParticleStateWire struct {
	EntityID      uint32
	WorldPosition Vec3Wire
	Velocity      Vec3Wire
	State         uint8 // 0=sleeping 1=active 2=settling
}

// FluidParticleUpdate is tag 13: server -> client, a bulk position/velocity
// update for up to MaxFluidParticlesPerUpdate active particles.
type FluidParticleUpdate struct {
	Particles []FluidParticleStateWire
}

// FluidParticleDespawn is tag 14: server -> client, a particle left active
// simulation (settled or was destroyed).
type FluidParticleDespawn struct {
	EntityID         uint32
	IslandID         uint32
	SettledVoxelPos  Vec3Wire
	ShouldCreateVoxel uint8
}
