// Package world owns the chunk collection and coordinates streaming,
// background terrain generation and frame-budgeted mesh rebuilds.
package world

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
	"github.com/codeyousef/voxelstream/internal/sim/terrain"
)

// Pose is the observer's position and orientation in world space.
type Pose struct {
	X, Y, Z float64
	Pitch   float64
	Yaw     float64
	Flight  bool
}

// ObserverProvider supplies the observer pose, polled once per frame.
type ObserverProvider interface {
	Pose() Pose
}

// MeshBuilder turns a chunk's blocks into a renderable surface. Builds may
// be expensive; the world invokes them synchronously from the dirty pump
// under the per-frame budget. Returned surfaces must be comparable values
// (pointers, handles) so reuse can be detected.
type MeshBuilder interface {
	Build(c *chunk.Chunk) (chunk.Surface, error)
}

// Scene attaches and detaches built surfaces. Once attached, a surface is
// owned by the scene; the world keeps a reference only to replace it.
type Scene interface {
	Attach(s chunk.Surface)
	Detach(s chunk.Surface)
}

// synthesizer generates one chunk's terrain; satisfied by terrain.Synthesizer.
type synthesizer interface {
	Generate(ctx context.Context, c *chunk.Chunk) error
}

// World is the orchestrator. The frame loop drives it through Update; the
// chunk map is additionally read by queries and written by bounded
// background generation workers.
type World struct {
	cfg    Config
	synth  synthesizer
	mesh   MeshBuilder
	scene  Scene
	obs    ObserverProvider
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	chunks map[coords.ChunkPos]*chunk.Chunk

	// Generation queue and its de-duplication set. A position stays in
	// inflight from enqueue until its synthesis task exits.
	genMu    sync.Mutex
	genQueue []coords.ChunkPos
	inflight map[coords.ChunkPos]struct{}

	locks  posLocks
	genSem chan struct{}
	genWG  sync.WaitGroup

	// Dirty-mesh queue: strict FIFO plus a pending set. The pump takes
	// dirtyMu with TryLock only; a busy queue never stalls the frame.
	dirtyMu      sync.Mutex
	dirtyQueue   []*chunk.Chunk
	dirtyPending map[coords.ChunkPos]struct{}

	// The pose is written by the frame loop and read by snapshot export,
	// which may run from another goroutine during shutdown.
	poseMu sync.RWMutex
	pose   Pose

	// Window recenter state, touched only from the frame loop.
	lastCenter  coords.ChunkPos
	hasObserver bool

	tick     atomic.Uint64
	snapSink chan<- snapshot.SnapshotV1

	loadTarget  atomic.Int64
	loadDone    atomic.Int64
	regenTarget atomic.Int64
	regenDone   atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a world. mesh and scene must be non-nil; obs may be nil when
// the caller drives UpdateStreaming directly.
func New(cfg Config, mesh MeshBuilder, scene Scene, obs ObserverProvider, logger *log.Logger) *World {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &World{
		cfg:          cfg,
		synth:        terrain.New(cfg.Seed),
		mesh:         mesh,
		scene:        scene,
		obs:          obs,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		chunks:       map[coords.ChunkPos]*chunk.Chunk{},
		inflight:     map[coords.ChunkPos]struct{}{},
		locks:        posLocks{m: map[coords.ChunkPos]*posLock{}},
		genSem:       make(chan struct{}, cfg.MaxConcurrentGen),
		dirtyPending: map[coords.ChunkPos]struct{}{},
		stop:         make(chan struct{}),
	}
}

func (w *World) Config() Config      { return w.cfg }
func (w *World) Seed() int64         { return w.cfg.Seed }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) LastPose() Pose {
	w.poseMu.RLock()
	defer w.poseMu.RUnlock()
	return w.pose
}

func (w *World) SetPose(p Pose) {
	w.poseMu.Lock()
	w.pose = p
	w.poseMu.Unlock()
}

// LoadedChunkCount returns the number of chunks currently in the map.
func (w *World) LoadedChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// Progress reports first-load mesh progress: chunks meshed for the first
// time versus positions ever enqueued for generation.
func (w *World) Progress() (done, total int64) {
	return w.loadDone.Load(), w.loadTarget.Load()
}

// RegenProgress reports the one-time full refresh pass, if one is running.
func (w *World) RegenProgress() (done, target int64) {
	return w.regenDone.Load(), w.regenTarget.Load()
}

// chunkAt returns the chunk at pos, creating an empty one when create is
// set. Creation wires the dirty notification back into the world's queue.
func (w *World) chunkAt(pos coords.ChunkPos, create bool) *chunk.Chunk {
	w.mu.RLock()
	c := w.chunks[pos]
	w.mu.RUnlock()
	if c != nil || !create {
		return c
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if c = w.chunks[pos]; c != nil {
		return c
	}
	c = chunk.New(pos)
	c.SetDirtyFunc(w.onChunkDirty)
	w.chunks[pos] = c
	return c
}

// Update advances one frame: poll the observer, recompute the streaming
// window if needed, then run both pumps under their budgets.
func (w *World) Update() {
	if w.obs != nil {
		w.UpdateStreaming(w.obs.Pose())
	}
	w.PumpGeneration(w.cfg.GenPerFrame)
	w.PumpDirty(w.cfg.MeshPerFrame)
}

// Close cancels outstanding generation, waits for workers, and drains all
// queues. The world must not be used afterwards.
func (w *World) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.cancel()
	w.genWG.Wait()

	w.genMu.Lock()
	w.genQueue = nil
	w.inflight = map[coords.ChunkPos]struct{}{}
	w.genMu.Unlock()

	w.dirtyMu.Lock()
	w.dirtyQueue = nil
	w.dirtyPending = map[coords.ChunkPos]struct{}{}
	w.dirtyMu.Unlock()

	w.locks.reset()
}
