// Package chunk implements the fixed-size voxel chunk: block storage, dirty
// tracking and the compact run-length codec.
package chunk

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

const (
	SizeX = 16
	SizeZ = 16
	SizeY = 256

	// Cells is the flat array length: 16*16*256.
	Cells = SizeX * SizeZ * SizeY
)

// ErrOutOfRange reports a local coordinate outside the chunk volume.
var ErrOutOfRange = errors.New("block coordinate out of range")

// Surface is an opaque handle to a built chunk mesh. It is owned by the
// external scene; the chunk keeps a reference only for replacement/disposal.
type Surface any

// Chunk owns one 16x16x256 block volume.
//
// Writers: exactly one at a time (terrain synthesis under the world's
// per-position lock, or player edits from the frame loop). Readers may run
// concurrently and must tolerate a partially generated volume; the
// TerrainGenerated flag tells them what they are looking at.
type Chunk struct {
	pos    coords.ChunkPos
	blocks []block.Type

	generated atomic.Bool
	dirty     atomic.Bool
	modified  atomic.Bool
	suppress  atomic.Bool

	// surface is written by the mesh pump and read by generation workers
	// deciding whether a neighbor needs a seam fix.
	surface atomic.Pointer[Surface]

	// onDirty fires once per clean->dirty transition, never once per Set.
	onDirty func(*Chunk)
}

// New returns an empty chunk (all cells Default) at pos.
func New(pos coords.ChunkPos) *Chunk {
	return &Chunk{
		pos:    pos,
		blocks: make([]block.Type, Cells),
	}
}

func (c *Chunk) Pos() coords.ChunkPos { return c.pos }

// SetDirtyFunc installs the owner's dirty notification callback.
func (c *Chunk) SetDirtyFunc(fn func(*Chunk)) { c.onDirty = fn }

func index(x, y, z int) int { return x + z*SizeX + y*SizeX*SizeZ }

func inRange(x, y, z int) bool {
	return x >= 0 && x < SizeX && z >= 0 && z < SizeZ && y >= 0 && y < SizeY
}

// Get returns the block at a local coordinate.
func (c *Chunk) Get(x, y, z int) (block.Type, error) {
	if !inRange(x, y, z) {
		return block.Default, fmt.Errorf("get (%d,%d,%d): %w", x, y, z, ErrOutOfRange)
	}
	return c.blocks[index(x, y, z)], nil
}

// Set writes the block at a local coordinate. Writing the current value is a
// no-op so redundant writes never trigger a rebuild.
func (c *Chunk) Set(x, y, z int, t block.Type) error {
	if !inRange(x, y, z) {
		return fmt.Errorf("set (%d,%d,%d): %w", x, y, z, ErrOutOfRange)
	}
	i := index(x, y, z)
	if c.blocks[i] == t {
		return nil
	}
	c.blocks[i] = t
	c.MarkDirty()
	return nil
}

// MarkDirty flips the dirty flag and, unless notifications are suppressed,
// tells the owner exactly once per transition. Bulk generation suppresses
// notifications, writes 65,536 cells and then triggers a single rebuild.
func (c *Chunk) MarkDirty() {
	if c.suppress.Load() {
		c.dirty.Store(true)
		return
	}
	if c.dirty.CompareAndSwap(false, true) && c.onDirty != nil {
		c.onDirty(c)
	}
}

// ClearDirty is called by the owner after the mesh has been rebuilt.
func (c *Chunk) ClearDirty() { c.dirty.Store(false) }

func (c *Chunk) Dirty() bool { return c.dirty.Load() }

// SetSuppressNotify toggles the bulk-write mode used during generation.
// Leaving suppress mode does not emit a notification on its own.
func (c *Chunk) SetSuppressNotify(on bool) { c.suppress.Store(on) }

func (c *Chunk) TerrainGenerated() bool { return c.generated.Load() }
func (c *Chunk) MarkGenerated()         { c.generated.Store(true) }

func (c *Chunk) ModifiedByPlayer() bool { return c.modified.Load() }
func (c *Chunk) MarkModifiedByPlayer()  { c.modified.Store(true) }

// Surface returns the chunk's last built mesh handle, or nil.
func (c *Chunk) Surface() Surface {
	p := c.surface.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetSurface records the handle of the most recent mesh build.
func (c *Chunk) SetSurface(s Surface) {
	if s == nil {
		c.surface.Store(nil)
		return
	}
	c.surface.Store(&s)
}

// HasSurface reports whether a mesh has been built for this chunk.
func (c *Chunk) HasSurface() bool { return c.surface.Load() != nil }

// Fill overwrites every cell in a single pass, marks the terrain generated
// and signals dirtiness once.
func (c *Chunk) Fill(t block.Type) {
	for i := range c.blocks {
		c.blocks[i] = t
	}
	c.generated.Store(true)
	c.MarkDirty()
}

// IsEmpty reports whether every cell holds the default block.
func (c *Chunk) IsEmpty() bool {
	for _, b := range c.blocks {
		if b != block.Default {
			return false
		}
	}
	return true
}

// Count returns the number of cells holding t.
func (c *Chunk) Count(t block.Type) int {
	n := 0
	for _, b := range c.blocks {
		if b == t {
			n++
		}
	}
	return n
}

// Equal compares block contents only, not flags.
func (c *Chunk) Equal(o *Chunk) bool {
	for i := range c.blocks {
		if c.blocks[i] != o.blocks[i] {
			return false
		}
	}
	return true
}
