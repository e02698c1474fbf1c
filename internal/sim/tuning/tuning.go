// Package tuning loads the runtime parameters shared by the server and
// tooling from tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// Streaming window radii, in chunks.
	InitialRadius int `yaml:"initial_radius"`
	StreamRadius  int `yaml:"stream_radius"`

	// Per-frame pump budgets.
	GenPerFrame  int `yaml:"gen_per_frame"`
	MeshPerFrame int `yaml:"mesh_per_frame"`

	// Upper bound on simultaneous terrain synthesis tasks.
	MaxConcurrentGen int `yaml:"max_concurrent_gen"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         30,
		InitialRadius:      3,
		StreamRadius:       6,
		GenPerFrame:        4,
		MeshPerFrame:       2,
		MaxConcurrentGen:   4,
		SnapshotEveryTicks: 1800,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
