// Package mesh implements the asynchronous chunk mesh generation pipeline:
// a bounded worker pool consumes a deduplicating job queue. Each completed
// snapshot is passed to its job's OnReady callback on the worker goroutine
// that generated it; the package has no main-thread drop-off queue, so
// OnReady runs concurrently with the simulation thread.
// Grounded on
// _examples/original_source/engine/World/AsyncMeshGenerator.h's
// worker-pool/job-queue shape (its completed queue is replaced by the
// OnReady callback), reimplemented with Go channels instead of a condition
// variable, and sized via gopsutil instead of a fixed thread count.
package mesh

import (
	"context"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/skyforge-mmo/skyforge/internal/logging"
	"github.com/skyforge-mmo/skyforge/internal/world"
)

// ChunkJob is the unit of work: generate (or regenerate) the mesh for one
// chunk. A worker builds the snapshot with Chunk.GenerateFullMesh, which
// only reads the chunk, then calls OnReady with it on that same worker
// goroutine.
type ChunkJob struct {
	Chunk   *world.Chunk
	OnReady func(render *world.MeshSnapshot)
}

// job is the internal queue entry, tracking which chunks already have an
// in-flight job so repeated edits to the same chunk collapse into the
// latest request instead of piling up duplicate work (spec.md §4.I: at
// most one in-flight job per chunk).
type job struct {
	chunk   *world.Chunk
	onReady func(render *world.MeshSnapshot)
}

// Pipeline runs a bounded pool of mesh-generation workers.
type Pipeline struct {
	log *logging.Logger

	jobs   chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu        sync.Mutex
	inFlight  map[*world.Chunk]*job // chunk -> the job currently queued/running for it
	followUps map[*world.Chunk]*job // a newer request that arrived while inFlight was running
}

// WorkerCount returns clamp(1, 4, n-2), where n is gopsutil's logical-core
// count, or runtime.NumCPU() if that probe fails. Grounded on the
// spec's explicit sizing formula; gopsutil is used instead of
// runtime.NumCPU() alone so the count reflects the host's actual logical
// CPU availability (e.g. inside a cgroup-limited container).
func WorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	n -= 2
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// New starts a Pipeline with the given number of workers, or WorkerCount()
// workers when workers <= 0. MESH_THREADS env
// override, if any, is applied by the caller before invoking New (see
// cmd/server/main.go) rather than inside this package, keeping env lookups
// out of library code.
func New(workers int, log *logging.Logger) *Pipeline {
	if workers <= 0 {
		workers = WorkerCount()
	}
	if log == nil {
		log = logging.GetMeshLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		log:       log,
		jobs:      make(chan job, workers*4),
		cancel:    cancel,
		inFlight:  make(map[*world.Chunk]*job),
		followUps: make(map[*world.Chunk]*job),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx)
	}
	p.log.Info("mesh pipeline started", "workers", workers)
	return p
}

// Submit enqueues a chunk for (re)generation. If the chunk already has a
// job in flight, this request is remembered as a follow-up and the worker
// re-submits the chunk for itself once the current job completes, instead
// of running two generations concurrently for the same chunk.
func (p *Pipeline) Submit(j ChunkJob) {
	p.mu.Lock()
	newJob := &job{chunk: j.Chunk, onReady: j.OnReady}
	if _, busy := p.inFlight[j.Chunk]; busy {
		p.followUps[j.Chunk] = newJob
		p.mu.Unlock()
		return
	}
	p.inFlight[j.Chunk] = newJob
	p.mu.Unlock()

	select {
	case p.jobs <- *newJob:
	default:
		// Queue full: drop back to "no job in flight" so a later Submit
		// retries rather than blocking the caller (the simulation thread)
		// on a full channel.
		p.mu.Lock()
		delete(p.inFlight, j.Chunk)
		p.mu.Unlock()
	}
}

func (p *Pipeline) workerLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runJob(j)
		}
	}
}

func (p *Pipeline) runJob(j job) {
	snapshot := j.chunk.GenerateFullMesh()
	if j.onReady != nil {
		j.onReady(snapshot)
	}

	p.mu.Lock()
	delete(p.inFlight, j.chunk)
	follow, hasFollowUp := p.followUps[j.chunk]
	if hasFollowUp {
		delete(p.followUps, j.chunk)
	}
	p.mu.Unlock()

	if hasFollowUp {
		p.Submit(ChunkJob{Chunk: follow.chunk, OnReady: follow.onReady})
	}
}

// PendingJobs reports the number of chunks with a generation in flight or
// queued as a follow-up, for diagnostics/metrics.
func (p *Pipeline) PendingJobs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight) + len(p.followUps)
}

// Shutdown stops accepting new work and waits for in-flight workers to
// drain.
func (p *Pipeline) Shutdown() {
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
}
