package world

import (
	"math"

	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// UpdateStreaming records the observer pose and, when the observer crossed a
// chunk boundary since the last call, re-enqueues the streaming window
// around the new center.
func (w *World) UpdateStreaming(p Pose) {
	w.SetPose(p)
	center := coords.FromWorld(
		int(math.Floor(p.X)),
		int(math.Floor(p.Z)),
	)
	if w.hasObserver && center == w.lastCenter {
		return
	}
	w.hasObserver = true
	w.lastCenter = center
	w.EnqueueAround(center, w.cfg.StreamRadius)
}

// EnqueueAround pushes every not-yet-generated position within radius of
// center onto the generation queue, nearest rings first. Positions already
// queued or generating are skipped via the in-flight set. Returns the
// number of newly enqueued positions.
func (w *World) EnqueueAround(center coords.ChunkPos, radius int) int {
	ring := coords.RingsAround(center, radius)

	// Snapshot generated-ness outside genMu; lock order is mu before genMu.
	generated := make([]bool, len(ring))
	w.mu.RLock()
	for i, pos := range ring {
		if c := w.chunks[pos]; c != nil && c.TerrainGenerated() {
			generated[i] = true
		}
	}
	w.mu.RUnlock()

	w.genMu.Lock()
	defer w.genMu.Unlock()
	added := 0
	for i, pos := range ring {
		if generated[i] {
			continue
		}
		if _, busy := w.inflight[pos]; busy {
			continue
		}
		w.inflight[pos] = struct{}{}
		w.genQueue = append(w.genQueue, pos)
		added++
	}
	w.loadTarget.Add(int64(added))
	return added
}

// PreloadAround queues the initial window around a pose before the frame
// loop starts, so nearby terrain is already generating on the first frames.
func (w *World) PreloadAround(p Pose, radius int) int {
	w.SetPose(p)
	center := coords.FromWorld(
		int(math.Floor(p.X)),
		int(math.Floor(p.Z)),
	)
	return w.EnqueueAround(center, radius)
}

// QueuedGeneration returns the current generation backlog size.
func (w *World) QueuedGeneration() int {
	w.genMu.Lock()
	defer w.genMu.Unlock()
	return len(w.genQueue)
}
