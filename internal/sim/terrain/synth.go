// Package terrain fills chunks from the world's noise fields.
package terrain

import (
	"context"
	"math"
	"runtime"

	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/noise"
)

const (
	// Horizontal sampling frequency of the height field.
	heightFreq = 1.0 / 64
	// 3D sampling frequency of the cave field.
	caveFreq = 1.0 / 32

	baseHeight = 64
	heightAmp  = 30

	// SeaLevel is the y below which surfaces turn to sand.
	SeaLevel = 62

	caveThreshold = 0.4
	// Caves only carve this far below the surface, so they never open the
	// terrain from above.
	caveMinDepth = 8

	// yieldEvery bounds how many cell writes happen between cancellation
	// checkpoints, so one chunk cannot monopolize a worker.
	yieldEvery = 8192
)

// Synthesizer derives deterministic terrain from a world seed. The height
// and cave fields use different seeds so the two signals are decorrelated.
type Synthesizer struct {
	height *noise.Field
	caves  *noise.Field
}

func New(seed int64) *Synthesizer {
	return &Synthesizer{
		height: noise.New(seed),
		caves:  noise.New(seed + 1),
	}
}

// HeightAt returns the surface height for a world column, always within
// [baseHeight, baseHeight+2*heightAmp].
func (s *Synthesizer) HeightAt(wx, wz int) int {
	n := s.height.Sample2D(float64(wx)*heightFreq, float64(wz)*heightFreq)
	return int(math.Round((n+1)*heightAmp)) + baseHeight
}

// Generate fills c column by column. Writes run in the chunk's suppressed
// notification mode; the caller decides when to signal the rebuild. Every
// yieldEvery writes the synthesizer checks ctx and yields, so cancellation
// is observed mid-chunk.
func (s *Synthesizer) Generate(ctx context.Context, c *chunk.Chunk) error {
	c.SetSuppressNotify(true)
	defer c.SetSuppressNotify(false)

	wxMin, wzMin := c.Pos().WorldMin()
	writes := 0
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			wx := wxMin + x
			wz := wzMin + z
			h := s.HeightAt(wx, wz)
			for y := 0; y < chunk.SizeY; y++ {
				if err := c.Set(x, y, z, s.blockAt(wx, y, wz, h)); err != nil {
					return err
				}
				writes++
				if writes%yieldEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
					runtime.Gosched()
				}
			}
		}
	}

	c.MarkGenerated()
	return nil
}

func (s *Synthesizer) blockAt(wx, y, wz, h int) block.Type {
	switch {
	case y > h:
		return block.Air
	case y == h:
		if h > SeaLevel {
			return block.Grass
		}
		return block.Sand
	case y >= h-3:
		return block.Dirt
	default:
		if y < h-caveMinDepth {
			n := s.caves.Sample3D(float64(wx)*caveFreq, float64(y)*caveFreq, float64(wz)*caveFreq)
			if n > caveThreshold {
				return block.Air
			}
		}
		return block.Stone
	}
}
