package world

import (
	"errors"
	"sort"
	"time"

	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// ExportSnapshot captures the seed, the observer pose and the encoded form
// of every player-modified chunk. Unmodified terrain is not persisted; it
// replays from the seed.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	pose := w.LastPose()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
			SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
		Seed: w.cfg.Seed,
		ObserverPosition: snapshot.Vec3{
			X: pose.X, Y: pose.Y, Z: pose.Z,
		},
		ObserverOrientation: snapshot.Orientation{
			Pitch: pose.Pitch, Yaw: pose.Yaw,
		},
		FlightMode:     pose.Flight,
		ModifiedChunks: []snapshot.ChunkV1{},
	}

	w.mu.RLock()
	modified := make([]*chunk.Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		if c.ModifiedByPlayer() {
			modified = append(modified, c)
		}
	}
	w.mu.RUnlock()

	sort.Slice(modified, func(i, j int) bool {
		a, b := modified[i].Pos(), modified[j].Pos()
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	for _, c := range modified {
		snap.ModifiedChunks = append(snap.ModifiedChunks, snapshot.ChunkV1{
			CX:     c.Pos().X,
			CZ:     c.Pos().Z,
			Blocks: c.Encode(),
		})
	}
	return snap
}

// ImportSnapshot restores the observer pose and applies the modified chunk
// deltas on top of a world created with the snapshot's seed. A chunk that
// fails to decode is skipped, not fatal: the rest of the snapshot still
// loads and the position regenerates from the seed.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	w.SetPose(Pose{
		X:      snap.ObserverPosition.X,
		Y:      snap.ObserverPosition.Y,
		Z:      snap.ObserverPosition.Z,
		Pitch:  snap.ObserverOrientation.Pitch,
		Yaw:    snap.ObserverOrientation.Yaw,
		Flight: snap.FlightMode,
	})

	restored := 0
	for _, cv := range snap.ModifiedChunks {
		pos, err := coords.New(cv.CX, cv.CZ)
		if err != nil {
			w.logger.Printf("snapshot chunk (%d,%d): %v; skipping", cv.CX, cv.CZ, err)
			continue
		}
		c := w.chunkAt(pos, true)
		if err := c.Decode(cv.Blocks); err != nil {
			if errors.Is(err, chunk.ErrCorruptData) {
				w.logger.Printf("snapshot chunk %v: %v; skipping", pos, err)
				continue
			}
			return err
		}
		c.MarkGenerated()
		c.MarkModifiedByPlayer()
		w.enqueueDirty(c)
		restored++
	}
	// Restored chunks mesh through the same first-load path as generated
	// ones, so they count into the load target too.
	w.loadTarget.Add(int64(restored))
	return nil
}
