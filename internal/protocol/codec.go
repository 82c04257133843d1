package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

// byteOrder is little-endian throughout, matching the original's
// x86/ARM-native packed struct layout (spec.md §6.1).
var byteOrder = binary.LittleEndian

// Encode writes the version prefix, tag byte, and msg's fixed-width
// payload to w. msg must be one of the message types in messages.go.
func Encode(w io.Writer, tag Tag, msg interface{}) error {
	var buf bytes.Buffer
	buf.WriteByte(Version)
	buf.WriteByte(byte(tag))

	if err := encodeBody(&buf, tag, msg); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads the version prefix and tag from r, then decodes the
// remaining fixed-width payload for that tag into the returned value
// (one of the message types in messages.go, as a pointer-free value
// matching msg's type passed to Encode).
func Decode(r io.Reader) (Tag, interface{}, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if header[0] != Version {
		return 0, nil, fmt.Errorf("%w: got %d want %d", ErrUnsupportedVersion, header[0], Version)
	}
	tag := Tag(header[1])
	fr := &fieldReader{r: r}
	msg := decodeBody(fr, tag)
	if fr.err != nil {
		return tag, nil, fr.err
	}
	return tag, msg, nil
}

func encodeBody(buf *bytes.Buffer, tag Tag, msg interface{}) error {
	switch tag {
	case TagPlayerMovementRequest:
		m := msg.(PlayerMovementRequest)
		writeU32(buf, m.SequenceNumber)
		writeVec3(buf, m.IntendedPosition)
		writeVec3(buf, m.Velocity)
		writeF32(buf, m.DeltaTime)
	case TagPlayerPositionUpdate:
		m := msg.(PlayerPositionUpdate)
		writeU32(buf, m.PlayerID)
		writeU32(buf, m.SequenceNumber)
		writeVec3(buf, m.Position)
		writeVec3(buf, m.Velocity)
	case TagWorldState:
		m := msg.(WorldState)
		writeU32(buf, m.NumIslands)
		for _, p := range m.Positions {
			writeVec3(buf, p)
		}
		writeVec3(buf, m.PlayerSpawn)
	case TagCompressedChunkData:
		m := msg.(CompressedChunkPayload)
		return encodeCompressedChunk(buf, m)
	case TagVoxelChangeRequest:
		m := msg.(VoxelChangeRequest)
		writeU32(buf, m.SequenceNumber)
		writeU32(buf, m.IslandID)
		writeVec3(buf, m.LocalPos)
		buf.WriteByte(m.VoxelType)
	case TagVoxelChangeUpdate:
		m := msg.(VoxelChangeUpdate)
		writeU32(buf, m.SequenceNumber)
		writeU32(buf, m.IslandID)
		writeVec3(buf, m.LocalPos)
		buf.WriteByte(m.VoxelType)
		writeU32(buf, m.AuthorPlayerID)
	case TagEntityStateUpdate:
		m := msg.(EntityStateUpdate)
		writeU32(buf, m.SequenceNumber)
		writeU32(buf, m.EntityID)
		buf.WriteByte(byte(m.EntityType))
		writeVec3(buf, m.Position)
		writeVec3(buf, m.Velocity)
		writeVec3(buf, m.Acceleration)
		writeVec3(buf, m.Rotation)
		writeVec3(buf, m.AngularVelocity)
		writeU32(buf, m.ServerTimestamp)
		buf.WriteByte(byte(m.Flags))
	case TagPilotingInput:
		m := msg.(PilotingInput)
		writeU32(buf, m.SequenceNumber)
		writeU32(buf, m.IslandID)
		writeF32(buf, m.ThrustY)
		writeF32(buf, m.RotationPitch)
		writeF32(buf, m.RotationYaw)
		writeF32(buf, m.RotationRoll)
	case TagFluidParticleSpawn:
		m := msg.(FluidParticleSpawn)
		writeU32(buf, m.EntityID)
		writeU32(buf, m.IslandID)
		writeVec3(buf, m.WorldPosition)
		writeVec3(buf, m.Velocity)
		writeVec3(buf, m.OriginalVoxelPos)
	case TagFluidParticleUpdate:
		m := msg.(FluidParticleUpdate)
		if len(m.Particles) > MaxFluidParticlesPerUpdate {
			return fmt.Errorf("%w: %d particles", ErrPayloadTooLarge, len(m.Particles))
		}
		writeU32(buf, uint32(len(m.Particles)))
		for _, p := range m.Particles {
			writeU32(buf, p.EntityID)
			writeVec3(buf, p.WorldPosition)
			writeVec3(buf, p.Velocity)
			buf.WriteByte(p.State)
		}
	case TagFluidParticleDespawn:
		m := msg.(FluidParticleDespawn)
		writeU32(buf, m.EntityID)
		writeU32(buf, m.IslandID)
		writeVec3(buf, m.SettledVoxelPos)
		buf.WriteByte(m.ShouldCreateVoxel)
	default:
		return fmt.Errorf("protocol: unknown tag %d", tag)
	}
	return nil
}

// fieldReader wraps an io.Reader with a sticky error, so a tag's sequence
// of must* field reads can be written as a flat list matching the wire
// struct's field order (mirroring the original PACKED struct's layout)
// without an if-err-return after every field. One fieldReader is created
// per Decode call, so it carries no state across concurrent decodes.
type fieldReader struct {
	r   io.Reader
	err error
}

func decodeBody(fr *fieldReader, tag Tag) interface{} {
	switch tag {
	case TagPlayerMovementRequest:
		var m PlayerMovementRequest
		m.SequenceNumber = fr.u32()
		m.IntendedPosition = fr.vec3()
		m.Velocity = fr.vec3()
		m.DeltaTime = fr.f32()
		return m
	case TagPlayerPositionUpdate:
		var m PlayerPositionUpdate
		m.PlayerID = fr.u32()
		m.SequenceNumber = fr.u32()
		m.Position = fr.vec3()
		m.Velocity = fr.vec3()
		return m
	case TagWorldState:
		var m WorldState
		m.NumIslands = fr.u32()
		for i := range m.Positions {
			m.Positions[i] = fr.vec3()
		}
		m.PlayerSpawn = fr.vec3()
		return m
	case TagCompressedChunkData:
		return decodeCompressedChunk(fr)
	case TagVoxelChangeRequest:
		var m VoxelChangeRequest
		m.SequenceNumber = fr.u32()
		m.IslandID = fr.u32()
		m.LocalPos = fr.vec3()
		m.VoxelType = fr.byte_()
		return m
	case TagVoxelChangeUpdate:
		var m VoxelChangeUpdate
		m.SequenceNumber = fr.u32()
		m.IslandID = fr.u32()
		m.LocalPos = fr.vec3()
		m.VoxelType = fr.byte_()
		m.AuthorPlayerID = fr.u32()
		return m
	case TagEntityStateUpdate:
		var m EntityStateUpdate
		m.SequenceNumber = fr.u32()
		m.EntityID = fr.u32()
		m.EntityType = EntityType(fr.byte_())
		m.Position = fr.vec3()
		m.Velocity = fr.vec3()
		m.Acceleration = fr.vec3()
		m.Rotation = fr.vec3()
		m.AngularVelocity = fr.vec3()
		m.ServerTimestamp = fr.u32()
		m.Flags = EntityFlags(fr.byte_())
		return m
	case TagPilotingInput:
		var m PilotingInput
		m.SequenceNumber = fr.u32()
		m.IslandID = fr.u32()
		m.ThrustY = fr.f32()
		m.RotationPitch = fr.f32()
		m.RotationYaw = fr.f32()
		m.RotationRoll = fr.f32()
		return m
	case TagFluidParticleSpawn:
		var m FluidParticleSpawn
		m.EntityID = fr.u32()
		m.IslandID = fr.u32()
		m.WorldPosition = fr.vec3()
		m.Velocity = fr.vec3()
		m.OriginalVoxelPos = fr.vec3()
		return m
	case TagFluidParticleUpdate:
		count := fr.u32()
		if fr.err == nil && count > MaxFluidParticlesPerUpdate {
			fr.err = fmt.Errorf("%w: %d particles", ErrPayloadTooLarge, count)
			return nil
		}
		m := FluidParticleUpdate{Particles: make([]FluidParticleStateWire, 0, count)}
		for i := uint32(0); i < count && fr.err == nil; i++ {
			var p FluidParticleStateWire
			p.EntityID = fr.u32()
			p.WorldPosition = fr.vec3()
			p.Velocity = fr.vec3()
			p.State = fr.byte_()
			m.Particles = append(m.Particles, p)
		}
		return m
	case TagFluidParticleDespawn:
		var m FluidParticleDespawn
		m.EntityID = fr.u32()
		m.IslandID = fr.u32()
		m.SettledVoxelPos = fr.vec3()
		m.ShouldCreateVoxel = fr.byte_()
		return m
	default:
		fr.err = fmt.Errorf("protocol: unknown tag %d", tag)
		return nil
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeF32(buf *bytes.Buffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func writeVec3(buf *bytes.Buffer, v Vec3Wire) {
	writeF32(buf, v.X)
	writeF32(buf, v.Y)
	writeF32(buf, v.Z)
}

func (fr *fieldReader) u32() uint32 {
	if fr.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(fr.r, b[:]); err != nil {
		fr.err = fmt.Errorf("%w: %v", ErrTruncated, err)
		return 0
	}
	return byteOrder.Uint32(b[:])
}

func (fr *fieldReader) f32() float32 {
	return math.Float32frombits(fr.u32())
}

func (fr *fieldReader) vec3() Vec3Wire {
	return Vec3Wire{X: fr.f32(), Y: fr.f32(), Z: fr.f32()}
}

func (fr *fieldReader) byte_() uint8 {
	if fr.err != nil {
		return 0
	}
	var b [1]byte
	if _, err := io.ReadFull(fr.r, b[:]); err != nil {
		fr.err = fmt.Errorf("%w: %v", ErrTruncated, err)
		return 0
	}
	return b[0]
}

// --- compressed chunk payload ---------------------------------------------

// CompressedChunkPayload pairs a CompressedChunkHeader with the raw
// zstd-compressed voxel bytes that follow it on the wire.
type CompressedChunkPayload struct {
	Header         CompressedChunkHeader
	CompressedData []byte
}

// CompressChunkVoxels zstd-compresses raw uncompressed voxel bytes
// (ChunkSize^3 block IDs) for inclusion in a CompressedChunkPayload.
func CompressChunkVoxels(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// DecompressChunkVoxels reverses CompressChunkVoxels, rejecting output
// larger than MaxCompressedChunkSize to bound decompression-bomb damage.
func DecompressChunkVoxels(compressed []byte, originalSize int) ([]byte, error) {
	if originalSize > MaxCompressedChunkSize {
		return nil, ErrPayloadTooLarge
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, make([]byte, 0, originalSize))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxCompressedChunkSize {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

func encodeCompressedChunk(buf *bytes.Buffer, m CompressedChunkPayload) error {
	if len(m.CompressedData) > MaxCompressedChunkSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.CompressedData))
	}
	writeU32(buf, m.Header.IslandID)
	writeVec3(buf, m.Header.ChunkCoord)
	writeVec3(buf, m.Header.IslandPosition)
	writeU32(buf, m.Header.OriginalSize)
	writeU32(buf, uint32(len(m.CompressedData)))
	buf.Write(m.CompressedData)
	return nil
}

func decodeCompressedChunk(fr *fieldReader) CompressedChunkPayload {
	var m CompressedChunkPayload
	m.Header.IslandID = fr.u32()
	m.Header.ChunkCoord = fr.vec3()
	m.Header.IslandPosition = fr.vec3()
	m.Header.OriginalSize = fr.u32()
	compressedSize := fr.u32()
	if fr.err != nil {
		return m
	}
	if compressedSize > MaxCompressedChunkSize {
		fr.err = ErrPayloadTooLarge
		return m
	}
	m.Header.CompressedSize = compressedSize
	data := make([]byte, compressedSize)
	if _, err := io.ReadFull(fr.r, data); err != nil {
		fr.err = fmt.Errorf("%w: %v", ErrTruncated, err)
		return m
	}
	m.CompressedData = data
	return m
}
