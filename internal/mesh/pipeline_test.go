package mesh

import (
	"sync"
	"testing"
	"time"

	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/vec"
	"github.com/skyforge-mmo/skyforge/internal/world"
	"github.com/skyforge-mmo/skyforge/internal/world/block"
)

func TestPipelineGeneratesMeshForSubmittedChunk(t *testing.T) {
	p := New(2, logging.GetMeshLogger())
	defer p.Shutdown()

	c := world.NewChunk(vec.Vec3{})
	c.SetVec(vec.Vec3{X: 1, Y: 1, Z: 1}, block.StoneBlockID)

	done := make(chan *world.MeshSnapshot, 1)
	p.Submit(ChunkJob{Chunk: c, OnReady: func(snap *world.MeshSnapshot) {
		done <- snap
	}})

	select {
	case snap := <-done:
		if len(snap.Quads) == 0 {
			t.Fatal("expected a non-empty mesh for a chunk with a solid voxel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mesh generation")
	}
}

func TestPipelineCollapsesDuplicateSubmitsIntoOneFollowUp(t *testing.T) {
	p := New(1, logging.GetMeshLogger())
	defer p.Shutdown()

	c := world.NewChunk(vec.Vec3{})
	c.SetVec(vec.Vec3{X: 0, Y: 0, Z: 0}, block.StoneBlockID)

	var mu sync.Mutex
	var completions int
	release := make(chan struct{})
	var once sync.Once

	p.Submit(ChunkJob{Chunk: c, OnReady: func(snap *world.MeshSnapshot) {
		<-release // hold the first job in flight
		mu.Lock()
		completions++
		mu.Unlock()
	}})

	// Give the worker a moment to pick up the first job so it's genuinely
	// in flight before these follow-ups arrive.
	time.Sleep(20 * time.Millisecond)

	var followCompletions int
	for i := 0; i < 5; i++ {
		p.Submit(ChunkJob{Chunk: c, OnReady: func(snap *world.MeshSnapshot) {
			mu.Lock()
			followCompletions++
			mu.Unlock()
		}})
	}

	once.Do(func() { close(release) })

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := completions == 1 && followCompletions >= 1
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the collapsed follow-up to run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if followCompletions != 1 {
		t.Fatalf("expected exactly 1 follow-up job to run (duplicates collapsed), got %d", followCompletions)
	}
}

func TestWorkerCountClampedBetweenOneAndFour(t *testing.T) {
	n := WorkerCount()
	if n < 1 || n > 4 {
		t.Fatalf("expected WorkerCount in [1,4], got %d", n)
	}
}

func TestPipelinePendingJobsReflectsInFlightWork(t *testing.T) {
	p := New(1, logging.GetMeshLogger())
	defer p.Shutdown()

	c := world.NewChunk(vec.Vec3{})
	release := make(chan struct{})
	p.Submit(ChunkJob{Chunk: c, OnReady: func(snap *world.MeshSnapshot) {
		<-release
	}})
	time.Sleep(20 * time.Millisecond)
	if p.PendingJobs() == 0 {
		t.Fatal("expected at least one pending job while the worker is blocked")
	}
	close(release)
}
