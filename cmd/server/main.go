package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skyforge-mmo/skyforge/internal/authority"
	"github.com/skyforge-mmo/skyforge/internal/config"
	"github.com/skyforge-mmo/skyforge/internal/eventbus"
	"github.com/skyforge-mmo/skyforge/internal/fluid"
	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/mesh"
	"github.com/skyforge-mmo/skyforge/internal/network"
	"github.com/skyforge-mmo/skyforge/internal/observability"
	"github.com/skyforge-mmo/skyforge/internal/orchestrator"
	"github.com/skyforge-mmo/skyforge/internal/protocol"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

func main() {
	log := logging.GetServerLogger()
	log.Info("starting server")

	shutdownTel, err := observability.InitTelemetry(context.Background(), "skyforge_server")
	if err != nil {
		log.Warn("telemetry init failed", "error", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Warn("config load failed, using defaults", "error", err)
	}
	var serverCfg config.ServerConfig
	var worldCfg config.WorldConfig
	var busCfg config.EventBusConfig
	if cfg != nil {
		serverCfg = cfg.Server
		worldCfg = cfg.World
		busCfg = cfg.EventBus
	}

	// === EVENTBUS (diagnostics/telemetry fanout, not simulation-critical) ===
	natsURL := busCfg.URL
	if natsURL == "" {
		natsURL = "nats://127.0.0.1:4222"
	}
	retentionHrs := busCfg.Retention
	if retentionHrs <= 0 {
		retentionHrs = 24
	}
	bus, err := eventbus.NewJetStreamBus(natsURL, busCfg.Stream, time.Duration(retentionHrs)*time.Hour)
	if err != nil {
		log.Warn("eventbus unavailable, continuing without it", "error", err)
	} else {
		eventbus.Init(bus)
		if err := eventbus.StartLoggingListener(bus); err != nil {
			log.Warn("eventbus logging listener failed", "error", err)
		}
		metricsAddr := fmt.Sprintf(":%d", serverCfg.GetMetricsPort())
		exporter := eventbus.NewMetricsExporter(bus)
		exporter.StartHTTP(metricsAddr)
		log.Info("eventbus connected", "url", natsURL, "metrics_addr", metricsAddr)
	}

	if err := block.LoadJSONBlocks("assets/blocks"); err != nil && !os.IsNotExist(err) {
		log.Warn("block asset pack load failed", "error", err)
	}

	// === SIMULATION ===
	w := world.NewWorld(logging.GetWorldLogger())
	w.SetActivationRadius(worldCfg.GetActivationRadius())
	seed := worldCfg.Seed
	if seed == 0 {
		seed = 1
	}
	w.AddBlueprint(world.DefaultBlueprint(0, vec.Vec3Float{}, seed))

	fluidSystem := fluid.NewSystem(fluid.DefaultSettings(), logging.GetFluidLogger())

	meshWorkers := worldCfg.GetMeshThreads()
	meshPipeline := mesh.New(meshWorkers, logging.GetMeshLogger())

	orch := orchestrator.New(w, fluidSystem, logging.GetWorldLogger())

	srv := &gameServer{
		log:      log,
		world:    w,
		fluid:    fluidSystem,
		mesh:     meshPipeline,
		orch:     orch,
		pilots:   make(map[world.IslandID]*authority.PilotFSM),
		conns:    make(map[string]network.Conn),
	}
	orch.OnReplicate = srv.broadcastReplication
	orch.OnSplit = srv.onSplit

	// === NETWORK ===
	var listener network.Listener
	ctx, cancel := context.WithCancel(context.Background())
	if serverCfg.EnableNet {
		addr := serverCfg.ListenAddr
		if addr == "" {
			addr = fmt.Sprintf(":%d", serverCfg.GetUDPPort())
		}
		transport := network.NewKCPTransport()
		listener, err = transport.Listen(ctx, addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
		} else {
			log.Info("listening", "addr", addr)
			go srv.acceptLoop(ctx, listener)
		}
	} else {
		log.Info("networking disabled (server.enable_net=false)")
	}

	// === TICK LOOP ===
	stop := make(chan struct{})
	go orch.Run(stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	close(stop)
	cancel()
	if listener != nil {
		_ = listener.Close()
	}
	meshPipeline.Shutdown()
	if shutdownTel != nil {
		_ = shutdownTel(context.Background())
	}
	log.Info("server stopped")
}

// gameServer wires network I/O to the simulation orchestrator: every
// decoded client message becomes an orchestrator.Command, never a direct
// World mutation, so the simulation thread is the sole writer (spec.md §5).
type gameServer struct {
	log   *logging.Logger
	world *world.World
	fluid *fluid.System
	mesh  *mesh.Pipeline
	orch  *orchestrator.Orchestrator

	pilotsMu sync.Mutex
	pilots   map[world.IslandID]*authority.PilotFSM

	connsMu sync.Mutex
	conns   map[string]network.Conn
}

func (s *gameServer) acceptLoop(ctx context.Context, ln network.Listener) {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.connsMu.Lock()
		s.conns[conn.RemoteAddr()] = conn
		s.connsMu.Unlock()
		s.log.Info("client connected", "addr", conn.RemoteAddr())
		s.sendWorldState(conn)
		go s.connLoop(conn)
	}
}

// sendWorldState sends a newly connected client tag 5 (spec.md §6): the
// positions of up to the first MaxWorldStateIslands realised islands, as a
// rough orientation hint ahead of the per-chunk CompressedChunkData
// stream, plus a fixed player spawn point.
func (s *gameServer) sendWorldState(conn network.Conn) {
	islands := s.orch.World.Islands()
	state := protocol.WorldState{
		PlayerSpawn: protocol.Vec3Wire{X: 0, Y: 64, Z: 0},
	}
	for i, isl := range islands {
		if i >= protocol.MaxWorldStateIslands {
			break
		}
		pos := isl.PhysicsCenter()
		state.Positions[i] = protocol.Vec3Wire{X: float32(pos.X), Y: float32(pos.Y), Z: float32(pos.Z)}
		state.NumIslands++
	}
	if err := protocol.Encode(conn, protocol.TagWorldState, state); err != nil {
		s.log.Warn("world state send failed", "addr", conn.RemoteAddr(), "error", err)
	}
}

func (s *gameServer) connLoop(conn network.Conn) {
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn.RemoteAddr())
		s.connsMu.Unlock()
		conn.Close()
		s.log.Info("client disconnected", "addr", conn.RemoteAddr())
	}()

	for {
		tag, msg, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		s.handleMessage(conn, tag, msg)
	}
}

func (s *gameServer) handleMessage(conn network.Conn, tag protocol.Tag, msg interface{}) {
	switch m := msg.(type) {
	case protocol.VoxelChangeRequest:
		s.orch.Enqueue(func(w *world.World) {
			id := world.IslandID(m.IslandID)
			pos := vec.Vec3{X: int(m.LocalPos.X), Y: int(m.LocalPos.Y), Z: int(m.LocalPos.Z)}
			if err := w.SetVoxelWithMesh(id, pos, block.BlockID(m.VoxelType)); err != nil {
				s.log.Warn("voxel change rejected", "island_id", m.IslandID, "error", err)
				return
			}
			isl := w.Island(id)
			if isl != nil && !block.IsSolid(block.BlockID(m.VoxelType)) {
				s.fluid.TriggerActivation(isl, m.IslandID, vec.FromVec3(pos), 1.0)
			}
			s.broadcast(protocol.TagVoxelChangeUpdate, protocol.VoxelChangeUpdate{
				SequenceNumber: m.SequenceNumber,
				IslandID:       m.IslandID,
				LocalPos:       m.LocalPos,
				VoxelType:      m.VoxelType,
			})
		})

	case protocol.PilotingInput:
		s.orch.Enqueue(func(w *world.World) {
			id := world.IslandID(m.IslandID)
			isl := w.Island(id)
			if isl == nil {
				return
			}
			fsm := s.pilotFSM(id)
			fsm.OnInput()
			isl.SetState(world.IslandPiloted)

			_, prevAngular := isl.Accelerations()
			hasYaw := m.RotationYaw != 0
			linAccel, angularVel := authority.ApplyPilotInput(authority.PilotInput{
				ThrustY:       float64(m.ThrustY),
				RotationPitch: float64(m.RotationPitch),
				RotationYaw:   float64(m.RotationYaw),
				RotationRoll:  float64(m.RotationRoll),
			}, prevAngular, hasYaw)
			isl.SetAccelerations(linAccel, vec.Vec3Float{})
			linear, _ := isl.Velocities()
			isl.SetVelocities(linear, angularVel)
		})

	case protocol.PlayerMovementRequest:
		// Player entity replication is out of this reference server's scope
		// beyond island piloting; acknowledge immediately so the client's
		// PredictionTable can confirm the sequence.
		s.broadcast(protocol.TagPlayerPositionUpdate, protocol.PlayerPositionUpdate{
			SequenceNumber: m.SequenceNumber,
			Position:       m.IntendedPosition,
			Velocity:       m.Velocity,
		})

	default:
		s.log.Debug("unhandled message tag", "tag", tag)
	}
}

func (s *gameServer) pilotFSM(id world.IslandID) *authority.PilotFSM {
	s.pilotsMu.Lock()
	defer s.pilotsMu.Unlock()
	fsm, ok := s.pilots[id]
	if !ok {
		fsm = authority.NewPilotFSM(120) // 2s at 60Hz
		s.pilots[id] = fsm
	}
	return fsm
}

// onSplit submits every chunk of a newly created fragment island to the
// mesh pipeline, since a split produces geometry no client has meshed yet.
func (s *gameServer) onSplit(newIslands []*world.Island) {
	for _, isl := range newIslands {
		for _, c := range isl.Chunks() {
			chunk := c
			s.mesh.Submit(mesh.ChunkJob{
				Chunk: chunk,
				OnReady: func(snap *world.MeshSnapshot) {
					chunk.SwapMesh(snap, snap)
				},
			})
		}
	}
}

// broadcastReplication fans out one EntityStateUpdate per island to every
// connected client at orchestrator.ReplicationRateHz.
func (s *gameServer) broadcastReplication(snapshots []orchestrator.EntitySnapshot) {
	now := uint32(time.Now().Unix())
	for _, snap := range snapshots {
		flags := protocol.EntityFlags(0)
		s.broadcast(protocol.TagEntityStateUpdate, protocol.EntityStateUpdate{
			EntityID:        uint32(snap.IslandID),
			EntityType:      protocol.EntityTypeIsland,
			Position:        toWire(snap.Position),
			Velocity:        toWire(snap.Velocity),
			Acceleration:    toWire(snap.Acceleration),
			AngularVelocity: toWire(snap.AngularVelocity),
			ServerTimestamp: now,
			Flags:           flags,
		})
	}
}

func (s *gameServer) broadcast(tag protocol.Tag, msg interface{}) {
	s.connsMu.Lock()
	conns := make([]network.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		if err := protocol.Encode(c, tag, msg); err != nil {
			s.log.Debug("broadcast write failed", "addr", c.RemoteAddr(), "error", err)
		}
	}
}

func toWire(v vec.Vec3Float) protocol.Vec3Wire {
	return protocol.Vec3Wire{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
