package chunk

import (
	"errors"
	"testing"

	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

func TestGetSet_Bounds(t *testing.T) {
	c := New(coords.ChunkPos{})
	if err := c.Set(0, 0, 0, block.Stone); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(0, 0, 0)
	if err != nil || got != block.Stone {
		t.Fatalf("Get = %v, %v", got, err)
	}

	bad := [][3]int{{-1, 0, 0}, {16, 0, 0}, {0, -1, 0}, {0, 256, 0}, {0, 0, -1}, {0, 0, 16}}
	for _, p := range bad {
		if _, err := c.Get(p[0], p[1], p[2]); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Get(%v): err = %v, want ErrOutOfRange", p, err)
		}
		if err := c.Set(p[0], p[1], p[2], block.Dirt); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Set(%v): err = %v, want ErrOutOfRange", p, err)
		}
	}
}

func TestSet_SameValueDoesNotDirty(t *testing.T) {
	c := New(coords.ChunkPos{})
	notified := 0
	c.SetDirtyFunc(func(*Chunk) { notified++ })

	if err := c.Set(1, 2, 3, block.Default); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if c.Dirty() || notified != 0 {
		t.Fatalf("no-op Set dirtied the chunk (dirty=%v notified=%d)", c.Dirty(), notified)
	}

	_ = c.Set(1, 2, 3, block.Grass)
	if !c.Dirty() || notified != 1 {
		t.Fatalf("changed Set: dirty=%v notified=%d", c.Dirty(), notified)
	}
	_ = c.Set(1, 2, 3, block.Grass)
	if notified != 1 {
		t.Fatalf("redundant Set re-notified: %d", notified)
	}
}

func TestMarkDirty_NotifiesOncePerTransition(t *testing.T) {
	c := New(coords.ChunkPos{})
	notified := 0
	c.SetDirtyFunc(func(*Chunk) { notified++ })

	_ = c.Set(0, 0, 0, block.Stone)
	_ = c.Set(1, 0, 0, block.Stone)
	_ = c.Set(2, 0, 0, block.Stone)
	if notified != 1 {
		t.Fatalf("notified %d times while dirty, want 1", notified)
	}

	c.ClearDirty()
	_ = c.Set(3, 0, 0, block.Stone)
	if notified != 2 {
		t.Fatalf("notified %d times after clear, want 2", notified)
	}
}

func TestSuppressNotify_BulkWrite(t *testing.T) {
	c := New(coords.ChunkPos{})
	notified := 0
	c.SetDirtyFunc(func(*Chunk) { notified++ })

	c.SetSuppressNotify(true)
	for y := 0; y < 4; y++ {
		for z := 0; z < SizeZ; z++ {
			for x := 0; x < SizeX; x++ {
				_ = c.Set(x, y, z, block.Stone)
			}
		}
	}
	c.SetSuppressNotify(false)
	if notified != 0 {
		t.Fatalf("suppressed writes notified %d times", notified)
	}
	if !c.Dirty() {
		t.Fatal("suppressed writes must still flip the dirty flag")
	}
}

func TestFill(t *testing.T) {
	c := New(coords.ChunkPos{})
	notified := 0
	c.SetDirtyFunc(func(*Chunk) { notified++ })

	c.Fill(block.Sand)
	if !c.TerrainGenerated() {
		t.Fatal("Fill must mark the terrain generated")
	}
	if notified != 1 {
		t.Fatalf("Fill notified %d times, want 1", notified)
	}
	if c.Count(block.Sand) != Cells {
		t.Fatalf("Count = %d, want %d", c.Count(block.Sand), Cells)
	}
	if c.IsEmpty() {
		t.Fatal("filled chunk reported empty")
	}
}

func TestIsEmpty(t *testing.T) {
	c := New(coords.ChunkPos{})
	if !c.IsEmpty() {
		t.Fatal("fresh chunk must be empty")
	}
	_ = c.Set(5, 100, 7, block.Wood)
	if c.IsEmpty() {
		t.Fatal("chunk with a block reported empty")
	}
}
