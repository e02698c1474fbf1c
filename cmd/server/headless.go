package main

import (
	"sync"

	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// The server runs headless: the real mesh builder and scene live in the
// renderer process. This stand-in summarizes each chunk into a heightmap
// surface so the dirty pump, progress counters and neighbor seam logic all
// run against real handles.

type surfaceSummary struct {
	pos     coords.ChunkPos
	solid   int
	heights [coords.ChunkSize * coords.ChunkSize]int16
}

type headlessMesh struct{}

func newHeadlessMesh() *headlessMesh { return &headlessMesh{} }

func (m *headlessMesh) Build(c *chunk.Chunk) (chunk.Surface, error) {
	s := &surfaceSummary{pos: c.Pos()}
	for lz := 0; lz < coords.ChunkSize; lz++ {
		for lx := 0; lx < coords.ChunkSize; lx++ {
			top := int16(-1)
			for y := chunk.SizeY - 1; y >= 0; y-- {
				t, err := c.Get(lx, y, lz)
				if err != nil {
					return nil, err
				}
				if t == block.Air {
					continue
				}
				if top < 0 {
					top = int16(y)
				}
				s.solid++
			}
			s.heights[lx+lz*coords.ChunkSize] = top
		}
	}
	return s, nil
}

type headlessScene struct {
	mu       sync.Mutex
	attached map[chunk.Surface]struct{}
}

func newHeadlessScene() *headlessScene {
	return &headlessScene{attached: make(map[chunk.Surface]struct{})}
}

func (s *headlessScene) Attach(h chunk.Surface) {
	s.mu.Lock()
	s.attached[h] = struct{}{}
	s.mu.Unlock()
}

func (s *headlessScene) Detach(h chunk.Surface) {
	s.mu.Lock()
	delete(s.attached, h)
	s.mu.Unlock()
}
