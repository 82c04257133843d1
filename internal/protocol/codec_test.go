package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripVoxelChangeRequest(t *testing.T) {
	in := VoxelChangeRequest{
		SequenceNumber: 42,
		IslandID:       7,
		LocalPos:       Vec3Wire{X: 1, Y: 2, Z: 3},
		VoxelType:      5,
	}
	var buf bytes.Buffer
	if err := Encode(&buf, TagVoxelChangeRequest, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	tag, msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TagVoxelChangeRequest {
		t.Fatalf("expected tag %d, got %d", TagVoxelChangeRequest, tag)
	}
	out, ok := msg.(VoxelChangeRequest)
	if !ok {
		t.Fatalf("expected VoxelChangeRequest, got %T", msg)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestRoundTripWorldState(t *testing.T) {
	in := WorldState{
		NumIslands: 2,
		Positions: [MaxWorldStateIslands]Vec3Wire{
			{X: 1, Y: 2, Z: 3},
			{X: 4, Y: 5, Z: 6},
			{X: 0, Y: 0, Z: 0},
		},
		PlayerSpawn: Vec3Wire{X: 10, Y: 20, Z: 30},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, TagWorldState, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	tag, msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TagWorldState {
		t.Fatalf("expected tag %d, got %d", TagWorldState, tag)
	}
	out, ok := msg.(WorldState)
	if !ok {
		t.Fatalf("expected WorldState, got %T", msg)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestRoundTripEntityStateUpdate(t *testing.T) {
	in := EntityStateUpdate{
		SequenceNumber:  1,
		EntityID:        99,
		EntityType:      EntityTypeIsland,
		Position:        Vec3Wire{X: 1.5, Y: -2.25, Z: 3},
		Velocity:        Vec3Wire{X: 0.1},
		Acceleration:    Vec3Wire{Y: -9.8},
		Rotation:        Vec3Wire{Z: 1.57},
		AngularVelocity: Vec3Wire{X: 0.01},
		ServerTimestamp: 123456,
		Flags:           EntityFlagGrounded | EntityFlagNeedsCorrection,
	}
	var buf bytes.Buffer
	if err := Encode(&buf, TagEntityStateUpdate, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := msg.(EntityStateUpdate)
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{99, byte(TagVoxelChangeRequest)})
	_, _, err := Decode(buf)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	var full bytes.Buffer
	if err := Encode(&full, TagVoxelChangeRequest, VoxelChangeRequest{SequenceNumber: 1}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	truncated := bytes.NewBuffer(full.Bytes()[:len(full.Bytes())-3])
	_, _, err := Decode(truncated)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEncodeRejectsOversizedFluidParticleUpdate(t *testing.T) {
	particles := make([]FluidParticleStateWire, MaxFluidParticlesPerUpdate+1)
	var buf bytes.Buffer
	err := Encode(&buf, TagFluidParticleUpdate, FluidParticleUpdate{Particles: particles})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestRoundTripFluidParticleUpdateWithinLimit(t *testing.T) {
	in := FluidParticleUpdate{Particles: []FluidParticleStateWire{
		{EntityID: 1, WorldPosition: Vec3Wire{X: 1}, Velocity: Vec3Wire{Y: 1}, State: 1},
		{EntityID: 2, WorldPosition: Vec3Wire{X: 2}, Velocity: Vec3Wire{Y: 2}, State: 2},
	}}
	var buf bytes.Buffer
	if err := Encode(&buf, TagFluidParticleUpdate, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := msg.(FluidParticleUpdate)
	if len(out.Particles) != len(in.Particles) {
		t.Fatalf("expected %d particles, got %d", len(in.Particles), len(out.Particles))
	}
	for i := range in.Particles {
		if out.Particles[i] != in.Particles[i] {
			t.Fatalf("particle %d mismatch: got %+v want %+v", i, out.Particles[i], in.Particles[i])
		}
	}
}

func TestCompressedChunkRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0, 1, 0, 2, 0, 3}, 1000)
	compressed, err := CompressChunkVoxels(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	payload := CompressedChunkPayload{
		Header: CompressedChunkHeader{
			IslandID:       3,
			ChunkCoord:     Vec3Wire{X: 1, Y: 0, Z: 0},
			IslandPosition: Vec3Wire{X: 100, Y: 0, Z: 0},
			OriginalSize:   uint32(len(raw)),
		},
		CompressedData: compressed,
	}
	var buf bytes.Buffer
	if err := Encode(&buf, TagCompressedChunkData, payload); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := msg.(CompressedChunkPayload)

	decompressed, err := DecompressChunkVoxels(out.CompressedData, int(out.Header.OriginalSize))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, raw) {
		t.Fatal("expected decompressed chunk voxels to match the original")
	}
}

func TestDecompressChunkVoxelsRejectsOversizedOriginalSize(t *testing.T) {
	_, err := DecompressChunkVoxels([]byte{1, 2, 3}, MaxCompressedChunkSize+1)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
