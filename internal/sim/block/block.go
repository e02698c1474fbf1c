// Package block defines the closed set of voxel block types.
package block

// Type is a block id. The world stores one Type per cell.
type Type uint8

const (
	Air Type = iota
	Grass
	Dirt
	Stone
	Wood
	Leaves
	Sand
	Water

	// Count is the number of valid block types.
	Count = 8
)

// Default is the empty cell value and the fallback for unrecognized ids.
const Default = Air

var names = [Count]string{
	Air:    "air",
	Grass:  "grass",
	Dirt:   "dirt",
	Stone:  "stone",
	Wood:   "wood",
	Leaves: "leaves",
	Sand:   "sand",
	Water:  "water",
}

var transparent = [Count]bool{
	Air:    true,
	Leaves: true,
	Water:  true,
}

func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return names[t]
}

// Valid reports whether t is one of the defined block ids.
func (t Type) Valid() bool { return t < Count }

// Transparent reports whether a face adjacent to t must still be rendered.
func (t Type) Transparent() bool {
	if !t.Valid() {
		return transparent[Default]
	}
	return transparent[t]
}

// FromID maps an arbitrary byte to a Type. Foreign ids fall back to Default
// so decoded chunks always hold valid cells.
func FromID(id uint8) Type {
	t := Type(id)
	if !t.Valid() {
		return Default
	}
	return t
}
