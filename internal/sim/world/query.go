package world

import (
	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// GetBlock returns the block at an absolute world coordinate. The second
// result is false when the coordinate is outside the fixed world bound or
// the chunk is absent or not yet generated; callers (collision, tools)
// apply their own policy for absent space.
func (w *World) GetBlock(wx, wy, wz int) (block.Type, bool) {
	if wy < 0 || wy >= chunk.SizeY {
		return block.Default, false
	}
	pos := coords.FromWorld(wx, wz)
	if !coords.InBounds(pos.X, pos.Z) {
		return block.Default, false
	}
	c := w.chunkAt(pos, false)
	if c == nil || !c.TerrainGenerated() {
		return block.Default, false
	}
	lx, lz := coords.ToLocal(wx, wz)
	b, err := c.Get(lx, wy, lz)
	if err != nil {
		return block.Default, false
	}
	return b, true
}

// SetBlock applies a player edit at an absolute world coordinate. Returns
// false when the target chunk is absent or ungenerated. A changed cell
// marks the chunk player-modified, and an edit on a chunk face also
// re-dirties the adjacent chunk so the shared seam is rebuilt.
func (w *World) SetBlock(wx, wy, wz int, t block.Type) bool {
	if wy < 0 || wy >= chunk.SizeY {
		return false
	}
	pos := coords.FromWorld(wx, wz)
	if !coords.InBounds(pos.X, pos.Z) {
		return false
	}
	c := w.chunkAt(pos, false)
	if c == nil || !c.TerrainGenerated() {
		return false
	}
	lx, lz := coords.ToLocal(wx, wz)

	cur, err := c.Get(lx, wy, lz)
	if err != nil {
		return false
	}
	if cur == t {
		return true
	}
	if err := c.Set(lx, wy, lz, t); err != nil {
		return false
	}
	c.MarkModifiedByPlayer()

	if lx == 0 {
		w.dirtyNeighborAt(pos.X-1, pos.Z)
	}
	if lx == chunk.SizeX-1 {
		w.dirtyNeighborAt(pos.X+1, pos.Z)
	}
	if lz == 0 {
		w.dirtyNeighborAt(pos.X, pos.Z-1)
	}
	if lz == chunk.SizeZ-1 {
		w.dirtyNeighborAt(pos.X, pos.Z+1)
	}
	return true
}

func (w *World) dirtyNeighborAt(cx, cz int) {
	if !coords.InBounds(cx, cz) {
		return
	}
	n := w.chunkAt(coords.ChunkPos{X: cx, Z: cz}, false)
	if n != nil && n.TerrainGenerated() && n.HasSurface() {
		n.MarkDirty()
	}
}

// ChunkAt exposes a loaded chunk for collaborators (snapshot export,
// observer feed). Returns nil when absent.
func (w *World) ChunkAt(pos coords.ChunkPos) *chunk.Chunk {
	return w.chunkAt(pos, false)
}
