package world

import (
	"context"
	"time"

	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
)

// SetSnapshotSink installs the channel periodic snapshot exports are sent
// to. Exports are dropped, not blocked on, when the writer is behind.
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) {
	w.snapSink = ch
}

// Run drives the frame loop at the configured tick rate until ctx is
// cancelled or Stop is called.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			t := w.tick.Add(1)
			w.Update()

			if w.snapSink != nil && w.cfg.SnapshotEveryTicks > 0 &&
				t%uint64(w.cfg.SnapshotEveryTicks) == 0 {
				select {
				case w.snapSink <- w.ExportSnapshot():
				default:
					w.logger.Printf("snapshot sink busy; skipping export at tick %d", t)
				}
			}
		}
	}
}

// Stop ends the Run loop without tearing the world down.
func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}
