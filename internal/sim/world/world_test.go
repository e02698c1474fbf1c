package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

type surfaceHandle struct{ pos coords.ChunkPos }

type fakeMesh struct {
	builds atomic.Int64
	fail   atomic.Bool
}

func (m *fakeMesh) Build(c *chunk.Chunk) (chunk.Surface, error) {
	if m.fail.Load() {
		return nil, errors.New("builder offline")
	}
	m.builds.Add(1)
	return &surfaceHandle{pos: c.Pos()}, nil
}

type fakeScene struct {
	mu       sync.Mutex
	attached int
	detached int
}

func (s *fakeScene) Attach(chunk.Surface) {
	s.mu.Lock()
	s.attached++
	s.mu.Unlock()
}

func (s *fakeScene) Detach(chunk.Surface) {
	s.mu.Lock()
	s.detached++
	s.mu.Unlock()
}

func (s *fakeScene) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached, s.detached
}

// countingSynth wraps the real synthesizer and counts runs.
type countingSynth struct {
	inner synthesizer
	runs  atomic.Int64
}

func (s *countingSynth) Generate(ctx context.Context, c *chunk.Chunk) error {
	s.runs.Add(1)
	return s.inner.Generate(ctx, c)
}

func newTestWorld(t *testing.T) (*World, *fakeMesh, *fakeScene) {
	t.Helper()
	mesh := &fakeMesh{}
	scene := &fakeScene{}
	w := New(Config{ID: "test", Seed: 1337}, mesh, scene, nil, nil)
	t.Cleanup(w.Close)
	return w, mesh, scene
}

func TestEnsureGenerated_ConcurrentCallersRunOnce(t *testing.T) {
	w, _, _ := newTestWorld(t)
	cs := &countingSynth{inner: w.synth}
	w.synth = cs

	pos := coords.ChunkPos{X: 1, Z: 2}
	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = w.EnsureGenerated(context.Background(), pos)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := cs.runs.Load(); got != 1 {
		t.Fatalf("synthesis ran %d times, want 1", got)
	}
	if c := w.ChunkAt(pos); c == nil || !c.TerrainGenerated() {
		t.Fatal("chunk not generated after EnsureGenerated")
	}
	if n := w.locks.size(); n != 0 {
		t.Fatalf("lock map holds %d entries after completion, want 0", n)
	}
}

func TestEnsureGenerated_OutOfBounds(t *testing.T) {
	w, _, _ := newTestWorld(t)
	err := w.EnsureGenerated(context.Background(), coords.ChunkPos{X: 99, Z: 0})
	if !errors.Is(err, coords.ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestDirtyDedup_OneRebuildOneAttach(t *testing.T) {
	w, mesh, scene := newTestWorld(t)
	pos := coords.ChunkPos{X: 0, Z: 0}
	if err := w.EnsureGenerated(context.Background(), pos); err != nil {
		t.Fatalf("EnsureGenerated: %v", err)
	}
	c := w.ChunkAt(pos)

	// Dirty it a few more times before the pump runs.
	for i := 0; i < 5; i++ {
		c.MarkDirty()
	}

	if n := w.PumpDirty(16); n != 1 {
		t.Fatalf("PumpDirty built %d chunks, want 1", n)
	}
	if got := mesh.builds.Load(); got != 1 {
		t.Fatalf("mesh built %d times, want 1", got)
	}
	attached, detached := scene.counts()
	if attached != 1 || detached != 0 {
		t.Fatalf("scene attach=%d detach=%d, want 1/0", attached, detached)
	}
	if c.Dirty() {
		t.Fatal("chunk still dirty after pump")
	}

	// Nothing left in the queue.
	if n := w.PumpDirty(16); n != 0 {
		t.Fatalf("second PumpDirty built %d chunks, want 0", n)
	}
}

func TestPumpDirty_BudgetAndFIFO(t *testing.T) {
	w, _, _ := newTestWorld(t)
	positions := []coords.ChunkPos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0}}
	for _, p := range positions {
		if err := w.EnsureGenerated(context.Background(), p); err != nil {
			t.Fatalf("EnsureGenerated(%v): %v", p, err)
		}
	}

	if n := w.PumpDirty(2); n != 2 {
		t.Fatalf("first pump built %d, want 2", n)
	}
	// Budget respected: first two enqueued chunks got surfaces, third did not.
	if !w.ChunkAt(positions[0]).HasSurface() || !w.ChunkAt(positions[1]).HasSurface() {
		t.Fatal("first two chunks should be meshed")
	}
	if w.ChunkAt(positions[2]).HasSurface() {
		t.Fatal("third chunk meshed ahead of budget")
	}
	if n := w.PumpDirty(2); n != 1 {
		t.Fatalf("second pump built %d, want 1", n)
	}
}

func TestPumpDirty_NonBlockingSkip(t *testing.T) {
	w, _, _ := newTestWorld(t)
	if err := w.EnsureGenerated(context.Background(), coords.ChunkPos{}); err != nil {
		t.Fatalf("EnsureGenerated: %v", err)
	}

	w.dirtyMu.Lock()
	n := w.PumpDirty(8)
	w.dirtyMu.Unlock()
	if n != 0 {
		t.Fatalf("pump did not skip while the queue lock was held: built %d", n)
	}

	if n := w.PumpDirty(8); n != 1 {
		t.Fatalf("retry pump built %d, want 1", n)
	}
}

func TestPumpDirty_FailureKeepsChunkRetryable(t *testing.T) {
	w, mesh, _ := newTestWorld(t)
	pos := coords.ChunkPos{X: 3, Z: 3}
	if err := w.EnsureGenerated(context.Background(), pos); err != nil {
		t.Fatalf("EnsureGenerated: %v", err)
	}

	mesh.fail.Store(true)
	if n := w.PumpDirty(8); n != 0 {
		t.Fatalf("failing pump reported %d builds", n)
	}
	c := w.ChunkAt(pos)
	if !c.Dirty() {
		t.Fatal("chunk lost its dirty flag after a failed build")
	}

	mesh.fail.Store(false)
	if n := w.PumpDirty(8); n != 1 {
		t.Fatalf("retry built %d, want 1", n)
	}
}

func TestGeneration_RedirtiesMeshedNeighbor(t *testing.T) {
	w, mesh, _ := newTestWorld(t)
	a := coords.ChunkPos{X: 0, Z: 0}
	b := coords.ChunkPos{X: 1, Z: 0}

	if err := w.EnsureGenerated(context.Background(), a); err != nil {
		t.Fatalf("EnsureGenerated(a): %v", err)
	}
	if n := w.PumpDirty(8); n != 1 {
		t.Fatalf("meshing a: built %d", n)
	}

	// Generating b must re-dirty a: its mesh culled the shared face against
	// ungenerated space.
	if err := w.EnsureGenerated(context.Background(), b); err != nil {
		t.Fatalf("EnsureGenerated(b): %v", err)
	}
	if !w.ChunkAt(a).Dirty() {
		t.Fatal("meshed neighbor not re-dirtied")
	}

	if n := w.PumpDirty(8); n != 2 {
		t.Fatalf("pump built %d chunks, want 2 (b and re-meshed a)", n)
	}
	if got := mesh.builds.Load(); got != 3 {
		t.Fatalf("total builds = %d, want 3", got)
	}
}

func TestGeneration_UnmeshedNeighborNotDirtied(t *testing.T) {
	w, _, _ := newTestWorld(t)
	a := coords.ChunkPos{X: 5, Z: 5}
	b := coords.ChunkPos{X: 6, Z: 5}

	if err := w.EnsureGenerated(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	// a generated but never meshed: generating b keeps a's queue entry
	// deduplicated, still exactly one rebuild each.
	if err := w.EnsureGenerated(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if n := w.PumpDirty(16); n != 2 {
		t.Fatalf("pump built %d chunks, want 2", n)
	}
}

func TestPumpGeneration_DrainsQueueWithinBudget(t *testing.T) {
	w, _, _ := newTestWorld(t)
	center := coords.ChunkPos{X: 0, Z: 0}
	added := w.EnqueueAround(center, 1)
	if added != 9 {
		t.Fatalf("enqueued %d positions, want 9", added)
	}

	if n := w.PumpGeneration(4); n != 4 {
		t.Fatalf("first pump took %d, want 4", n)
	}
	if got := w.QueuedGeneration(); got != 5 {
		t.Fatalf("backlog = %d, want 5", got)
	}
	w.PumpGeneration(16)
	w.genWG.Wait()

	for _, p := range coords.RingsAround(center, 1) {
		c := w.ChunkAt(p)
		if c == nil || !c.TerrainGenerated() {
			t.Fatalf("position %v not generated after pumps", p)
		}
	}
	if n := w.locks.size(); n != 0 {
		t.Fatalf("lock map holds %d entries, want 0", n)
	}
	w.genMu.Lock()
	inflight := len(w.inflight)
	w.genMu.Unlock()
	if inflight != 0 {
		t.Fatalf("in-flight set holds %d entries, want 0", inflight)
	}
}

func TestEnqueueAround_Dedup(t *testing.T) {
	w, _, _ := newTestWorld(t)
	center := coords.ChunkPos{X: 0, Z: 0}
	if added := w.EnqueueAround(center, 2); added != 25 {
		t.Fatalf("first enqueue added %d, want 25", added)
	}
	if added := w.EnqueueAround(center, 2); added != 0 {
		t.Fatalf("re-enqueue added %d, want 0", added)
	}
}

func TestUpdateStreaming_OnBoundaryCrossingOnly(t *testing.T) {
	w, _, _ := newTestWorld(t)

	w.UpdateStreaming(Pose{X: 1, Z: 1})
	first := w.QueuedGeneration()
	if first == 0 {
		t.Fatal("initial streaming update enqueued nothing")
	}

	// Moves within the same chunk change nothing.
	w.UpdateStreaming(Pose{X: 8, Z: 12})
	if got := w.QueuedGeneration(); got != first {
		t.Fatalf("in-chunk move changed the queue: %d -> %d", first, got)
	}

	// Crossing into the next chunk re-enqueues the window edge.
	w.UpdateStreaming(Pose{X: 17, Z: 12})
	if got := w.QueuedGeneration(); got <= first {
		t.Fatalf("boundary crossing did not grow the queue: %d -> %d", first, got)
	}
}

func TestGetBlock_AbsentAndOutOfBounds(t *testing.T) {
	w, _, _ := newTestWorld(t)

	if _, ok := w.GetBlock(10_000, 64, 0); ok {
		t.Fatal("out-of-bound world coordinate must be absent")
	}
	if _, ok := w.GetBlock(0, -1, 0); ok {
		t.Fatal("negative y must be absent")
	}
	if _, ok := w.GetBlock(0, 300, 0); ok {
		t.Fatal("y above the world must be absent")
	}
	if _, ok := w.GetBlock(3, 64, 3); ok {
		t.Fatal("unloaded chunk must be absent")
	}

	if err := w.EnsureGenerated(context.Background(), coords.ChunkPos{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.GetBlock(3, 64, 3); !ok {
		t.Fatal("generated chunk must answer queries")
	}
}

func TestSetBlock_EdgeEditRedirtiesNeighbor(t *testing.T) {
	w, _, _ := newTestWorld(t)
	a := coords.ChunkPos{X: 0, Z: 0}
	b := coords.ChunkPos{X: -1, Z: 0}
	for _, p := range []coords.ChunkPos{a, b} {
		if err := w.EnsureGenerated(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	if n := w.PumpDirty(8); n != 2 {
		t.Fatalf("initial meshing built %d, want 2", n)
	}

	// Edit on a's x=0 face: b shares the seam.
	if !w.SetBlock(0, 200, 5, block.Stone) {
		t.Fatal("SetBlock failed on a generated chunk")
	}
	if !w.ChunkAt(a).ModifiedByPlayer() {
		t.Fatal("edited chunk not flagged player-modified")
	}
	if !w.ChunkAt(b).Dirty() {
		t.Fatal("face neighbor not re-dirtied by edge edit")
	}

	if w.SetBlock(10_000, 64, 0, block.Stone) {
		t.Fatal("SetBlock outside the world bound must fail")
	}
	if w.SetBlock(40, 64, 40, block.Stone) {
		t.Fatal("SetBlock on an absent chunk must fail")
	}
}

func TestSetBlock_SameValueIsNoop(t *testing.T) {
	w, _, _ := newTestWorld(t)
	if err := w.EnsureGenerated(context.Background(), coords.ChunkPos{}); err != nil {
		t.Fatal(err)
	}
	if n := w.PumpDirty(8); n != 1 {
		t.Fatalf("meshing built %d, want 1", n)
	}
	c := w.ChunkAt(coords.ChunkPos{})

	cur, ok := w.GetBlock(4, 70, 4)
	if !ok {
		t.Fatal("GetBlock on generated chunk failed")
	}
	if !w.SetBlock(4, 70, 4, cur) {
		t.Fatal("no-op SetBlock must succeed")
	}
	if c.Dirty() {
		t.Fatal("writing the current value dirtied the chunk")
	}
	if c.ModifiedByPlayer() {
		t.Fatal("no-op write flagged the chunk player-modified")
	}
}

func TestRegenerateAll(t *testing.T) {
	w, mesh, _ := newTestWorld(t)
	positions := []coords.ChunkPos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}}
	for _, p := range positions {
		if err := w.EnsureGenerated(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	if n := w.PumpDirty(16); n != 3 {
		t.Fatalf("initial meshing built %d, want 3", n)
	}
	before := mesh.builds.Load()

	if n := w.RegenerateAll(); n != 3 {
		t.Fatalf("RegenerateAll targeted %d chunks, want 3", n)
	}
	for w.PumpDirty(2) > 0 {
	}
	if got := mesh.builds.Load() - before; got != 3 {
		t.Fatalf("refresh rebuilt %d chunks, want 3", got)
	}
	done, target := w.RegenProgress()
	if done != 3 || target != 3 {
		t.Fatalf("regen progress %d/%d, want 3/3", done, target)
	}
}

// movingObs reports a pose one chunk further east on every poll, so each
// frame crosses a boundary and rewrites the streaming state.
type movingObs struct {
	polls atomic.Int64
}

func (o *movingObs) Pose() Pose {
	return Pose{X: float64(o.polls.Add(1)) * 16, Y: 80}
}

func TestExportSnapshot_ConcurrentWithRun(t *testing.T) {
	mesh := &fakeMesh{}
	scene := &fakeScene{}
	obs := &movingObs{}
	w := New(Config{
		ID:           "test",
		Seed:         7,
		TickRateHz:   2000,
		StreamRadius: 1,
		GenPerFrame:  1,
		MeshPerFrame: 1,
	}, mesh, scene, obs, nil)
	t.Cleanup(w.Close)

	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(context.Background()) }()

	// Snapshot from outside the frame loop while it is ticking, then once
	// more right after Stop, mirroring the server's shutdown save.
	for i := 0; i < 200; i++ {
		snap := w.ExportSnapshot()
		if snap.Seed != 7 {
			t.Fatalf("snapshot seed = %d, want 7", snap.Seed)
		}
	}
	w.Stop()
	snap := w.ExportSnapshot()
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Header.WorldID != "test" {
		t.Fatalf("snapshot world = %q, want test", snap.Header.WorldID)
	}
}

func TestImportSnapshot_CountsRestoredIntoProgress(t *testing.T) {
	w, mesh, _ := newTestWorld(t)

	filled := chunk.New(coords.ChunkPos{})
	filled.Fill(block.Stone)
	snap := snapshot.SnapshotV1{
		Seed: w.Seed(),
		ModifiedChunks: []snapshot.ChunkV1{
			{CX: 2, CZ: 3, Blocks: filled.Encode()},
			{CX: -4, CZ: 1, Blocks: filled.Encode()},
			{CX: 5, CZ: 5, Blocks: []byte{0x00}}, // truncated, skipped
		},
	}
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}

	done, total := w.Progress()
	if done != 0 || total != 2 {
		t.Fatalf("progress after import %d/%d, want 0/2", done, total)
	}
	if n := w.PumpDirty(8); n != 2 {
		t.Fatalf("meshing built %d, want 2", n)
	}
	if got := mesh.builds.Load(); got != 2 {
		t.Fatalf("builder ran %d times, want 2", got)
	}
	done, total = w.Progress()
	if done != 2 || total != 2 {
		t.Fatalf("progress after meshing %d/%d, want 2/2", done, total)
	}
}

func TestClose_CancelsAndDrains(t *testing.T) {
	mesh := &fakeMesh{}
	scene := &fakeScene{}
	w := New(Config{ID: "test", Seed: 1}, mesh, scene, nil, nil)

	w.EnqueueAround(coords.ChunkPos{}, 4)
	w.PumpGeneration(8)
	w.Close()

	if got := w.QueuedGeneration(); got != 0 {
		t.Fatalf("generation queue not drained: %d", got)
	}
	if n := w.locks.size(); n != 0 {
		t.Fatalf("lock map not cleared: %d", n)
	}
	if err := w.EnsureGenerated(w.ctx, coords.ChunkPos{X: 9, Z: 9}); err == nil {
		t.Fatal("EnsureGenerated with the world context must fail after Close")
	}
}
