package world

import (
	"context"
	"errors"

	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// PumpGeneration pops up to maxPerFrame queued positions and dispatches
// synthesis tasks onto the bounded worker pool. Returns the number of
// positions taken this frame.
func (w *World) PumpGeneration(maxPerFrame int) int {
	if maxPerFrame <= 0 {
		return 0
	}

	w.genMu.Lock()
	n := maxPerFrame
	if n > len(w.genQueue) {
		n = len(w.genQueue)
	}
	batch := make([]coords.ChunkPos, n)
	copy(batch, w.genQueue[:n])
	w.genQueue = w.genQueue[n:]
	w.genMu.Unlock()

	for _, pos := range batch {
		pos := pos
		c := w.chunkAt(pos, true)
		if c.TerrainGenerated() {
			w.clearInflight(pos)
			continue
		}
		w.genWG.Add(1)
		go func() {
			defer w.genWG.Done()
			// The in-flight marker must drop on every exit path or the
			// position could never be re-requested.
			defer w.clearInflight(pos)

			select {
			case w.genSem <- struct{}{}:
			case <-w.ctx.Done():
				return
			}
			defer func() { <-w.genSem }()

			if err := w.generateAt(w.ctx, pos); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				w.logger.Printf("generate chunk %v: %v", pos, err)
			}
		}()
	}
	return len(batch)
}

func (w *World) clearInflight(pos coords.ChunkPos) {
	w.genMu.Lock()
	delete(w.inflight, pos)
	w.genMu.Unlock()
}

// EnsureGenerated synthesizes the chunk at pos if that has not happened
// yet. It is idempotent and safe for concurrent callers: a per-position
// lock plus a re-check of the generated flag inside it guarantee at most
// one synthesis run per position.
func (w *World) EnsureGenerated(ctx context.Context, pos coords.ChunkPos) error {
	if !coords.InBounds(pos.X, pos.Z) {
		return coords.ErrOutOfBounds
	}
	return w.generateAt(ctx, pos)
}

func (w *World) generateAt(ctx context.Context, pos coords.ChunkPos) error {
	c := w.chunkAt(pos, true)

	lk := w.locks.acquire(pos)
	lk.mu.Lock()
	defer func() {
		lk.mu.Unlock()
		w.locks.release(pos, lk)
	}()

	// Double-checked inside the lock: a concurrent caller may have finished
	// while we waited.
	if c.TerrainGenerated() {
		return nil
	}
	if err := w.synth.Generate(ctx, c); err != nil {
		return err
	}

	// The bulk write suppressed notifications; enqueue the single rebuild
	// here and fix the seams of neighbors that already have a mesh.
	w.enqueueDirty(c)
	w.dirtyGeneratedNeighbors(pos)
	return nil
}

// dirtyGeneratedNeighbors re-dirties the four axis-adjacent chunks that are
// already generated with a surface. Their meshes culled the shared face
// against ungenerated space and must be rebuilt now that this chunk exists.
func (w *World) dirtyGeneratedNeighbors(pos coords.ChunkPos) {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, nz := pos.X+d[0], pos.Z+d[1]
		if !coords.InBounds(nx, nz) {
			continue
		}
		n := w.chunkAt(coords.ChunkPos{X: nx, Z: nz}, false)
		if n != nil && n.TerrainGenerated() && n.HasSurface() {
			n.MarkDirty()
		}
	}
}

// onChunkDirty is the chunk dirty callback: FIFO enqueue, de-duplicated so
// a chunk dirtied N times before the pump reaches it rebuilds once.
func (w *World) onChunkDirty(c *chunk.Chunk) {
	w.enqueueDirty(c)
}

func (w *World) enqueueDirty(c *chunk.Chunk) {
	w.dirtyMu.Lock()
	defer w.dirtyMu.Unlock()
	if _, pending := w.dirtyPending[c.Pos()]; pending {
		return
	}
	w.dirtyPending[c.Pos()] = struct{}{}
	w.dirtyQueue = append(w.dirtyQueue, c)
}

// PumpDirty rebuilds up to maxPerFrame dirty chunks through the external
// mesh builder. The queue lock is taken with TryLock: if generation workers
// hold it this frame, the pump skips and retries next frame instead of
// stalling the frame loop. Returns the number of successful rebuilds.
func (w *World) PumpDirty(maxPerFrame int) int {
	if maxPerFrame <= 0 {
		return 0
	}
	if !w.dirtyMu.TryLock() {
		return 0
	}
	n := maxPerFrame
	if n > len(w.dirtyQueue) {
		n = len(w.dirtyQueue)
	}
	batch := make([]*chunk.Chunk, n)
	copy(batch, w.dirtyQueue[:n])
	w.dirtyQueue = w.dirtyQueue[n:]
	for _, c := range batch {
		delete(w.dirtyPending, c.Pos())
	}
	w.dirtyMu.Unlock()

	built := 0
	for _, c := range batch {
		hadSurface := c.HasSurface()

		// Clear before building: an edit landing mid-build flips the flag
		// again and queues a fresh rebuild instead of being lost.
		c.ClearDirty()

		surf, err := w.mesh.Build(c)
		if err != nil {
			// Isolated failure: re-mark dirty so the chunk retries under a
			// later frame's budget.
			w.logger.Printf("mesh build %v: %v", c.Pos(), err)
			c.MarkDirty()
			continue
		}

		if old := c.Surface(); old != nil && old != surf {
			w.scene.Detach(old)
		}
		if surf != c.Surface() {
			w.scene.Attach(surf)
		}
		c.SetSurface(surf)
		built++

		if !hadSurface {
			w.loadDone.Add(1)
		} else if w.regenDone.Load() < w.regenTarget.Load() {
			w.regenDone.Add(1)
		}
	}
	return built
}

// RegenerateAll marks every generated chunk that has a surface dirty and
// records the pass size. Used once after the initial load to rebuild every
// mesh with all neighbors present.
func (w *World) RegenerateAll() int {
	w.mu.RLock()
	targets := make([]*chunk.Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		if c.TerrainGenerated() && c.HasSurface() {
			targets = append(targets, c)
		}
	}
	w.mu.RUnlock()

	w.regenTarget.Store(int64(len(targets)))
	w.regenDone.Store(0)
	for _, c := range targets {
		c.MarkDirty()
	}
	return len(targets)
}
