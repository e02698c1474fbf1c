// Package noise provides seeded deterministic gradient-noise fields.
package noise

import "github.com/aquilax/go-perlin"

// Perlin parameters: alpha/beta control octave weighting and frequency
// doubling, n is the octave count.
const (
	alpha   = 2.0
	beta    = 2.0
	octaves = 3
)

// Field is a pure 2D/3D noise field. The seed is consumed once at
// construction (seeded permutation tables inside the generator); sampling
// has no side effects and is safe for concurrent use.
type Field struct {
	p *perlin.Perlin
}

// New builds a field from a world seed. Fields built from different seeds
// are decorrelated.
func New(seed int64) *Field {
	return &Field{p: perlin.NewPerlin(alpha, beta, octaves, seed)}
}

// Sample2D returns the field value at (x,z), clamped to [-1,1].
func (f *Field) Sample2D(x, z float64) float64 {
	return clamp(f.p.Noise2D(x, z))
}

// Sample3D returns the field value at (x,y,z), clamped to [-1,1].
func (f *Field) Sample3D(x, y, z float64) float64 {
	return clamp(f.p.Noise3D(x, y, z))
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
