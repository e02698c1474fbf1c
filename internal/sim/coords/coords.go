// Package coords maps between absolute world coordinates and chunk grid
// positions.
package coords

import (
	"errors"
	"fmt"
)

// ChunkSize is the horizontal edge length of a chunk in blocks.
const ChunkSize = 16

// The world is a fixed 32x32 chunk grid.
const (
	MinChunk = -16
	MaxChunk = 15
)

// ErrOutOfBounds reports a chunk position outside the fixed world grid.
var ErrOutOfBounds = errors.New("chunk position out of world bounds")

// ChunkPos is one chunk's location on the world grid. Immutable once built.
type ChunkPos struct {
	X int
	Z int
}

// New validates the grid range. Positions outside the fixed bound are a
// construction error, never a silent clamp.
func New(x, z int) (ChunkPos, error) {
	if x < MinChunk || x > MaxChunk || z < MinChunk || z > MaxChunk {
		return ChunkPos{}, fmt.Errorf("chunk (%d,%d): %w", x, z, ErrOutOfBounds)
	}
	return ChunkPos{X: x, Z: z}, nil
}

// InBounds reports whether (x,z) is a valid grid position.
func InBounds(x, z int) bool {
	return x >= MinChunk && x <= MaxChunk && z >= MinChunk && z <= MaxChunk
}

func (p ChunkPos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Z) }

// WorldMin returns the minimum world coordinate covered by the chunk.
func (p ChunkPos) WorldMin() (wx, wz int) {
	return p.X * ChunkSize, p.Z * ChunkSize
}

// FromWorld maps absolute world coordinates to the containing chunk position.
// Uses true floor division so negative coordinates land in the right chunk.
func FromWorld(wx, wz int) ChunkPos {
	return ChunkPos{X: floorDiv(wx, ChunkSize), Z: floorDiv(wz, ChunkSize)}
}

// ToLocal returns the in-chunk offset for absolute world coordinates.
// Results are always in [0,ChunkSize).
func ToLocal(wx, wz int) (lx, lz int) {
	return mod(wx, ChunkSize), mod(wz, ChunkSize)
}

// RingsAround enumerates grid positions in expanding square rings: for each
// layer L in 0..radius, every position at Chebyshev distance exactly L from
// center, clipped to the world grid. Nearest layers come first; the caller's
// generation priority depends on that order.
func RingsAround(center ChunkPos, radius int) []ChunkPos {
	if radius < 0 {
		return nil
	}
	out := make([]ChunkPos, 0, (2*radius+1)*(2*radius+1))
	push := func(x, z int) {
		if InBounds(x, z) {
			out = append(out, ChunkPos{X: x, Z: z})
		}
	}

	push(center.X, center.Z)
	for l := 1; l <= radius; l++ {
		// Top and bottom edges, full width.
		for x := center.X - l; x <= center.X+l; x++ {
			push(x, center.Z-l)
			push(x, center.Z+l)
		}
		// Left and right edges, corners already covered.
		for z := center.Z - l + 1; z <= center.Z+l-1; z++ {
			push(center.X-l, z)
			push(center.X+l, z)
		}
	}
	return out
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
