package world

// Config carries one world's parameters. Zero values fall back to the
// defaults below.
type Config struct {
	ID   string
	Seed int64

	// Frame rate of the Run loop.
	TickRateHz int

	// Radius of the first-load window around the observer's spawn chunk.
	InitialRadius int
	// Radius of the streaming window recomputed on chunk boundary crossings.
	StreamRadius int

	// Per-frame pump budgets.
	GenPerFrame  int
	MeshPerFrame int

	// Upper bound on simultaneously running synthesis tasks.
	MaxConcurrentGen int

	// Snapshot export cadence in ticks (0 disables periodic export).
	SnapshotEveryTicks int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.InitialRadius <= 0 {
		c.InitialRadius = 3
	}
	if c.StreamRadius <= 0 {
		c.StreamRadius = 6
	}
	if c.GenPerFrame <= 0 {
		c.GenPerFrame = 4
	}
	if c.MeshPerFrame <= 0 {
		c.MeshPerFrame = 2
	}
	if c.MaxConcurrentGen <= 0 {
		c.MaxConcurrentGen = 4
	}
}
