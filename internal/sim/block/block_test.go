package block

import "testing"

func TestFromID_ForeignFallsBackToDefault(t *testing.T) {
	for id := 0; id < 256; id++ {
		got := FromID(uint8(id))
		if id < Count {
			if got != Type(id) {
				t.Fatalf("FromID(%d) = %v, want %v", id, got, Type(id))
			}
			continue
		}
		if got != Default {
			t.Fatalf("FromID(%d) = %v, want Default", id, got)
		}
	}
}

func TestTransparency(t *testing.T) {
	cases := []struct {
		t    Type
		want bool
	}{
		{Air, true},
		{Grass, false},
		{Dirt, false},
		{Stone, false},
		{Wood, false},
		{Leaves, true},
		{Sand, false},
		{Water, true},
	}
	for _, c := range cases {
		if c.t.Transparent() != c.want {
			t.Fatalf("%v.Transparent() = %v, want %v", c.t, !c.want, c.want)
		}
	}
}

func TestString_Unknown(t *testing.T) {
	if Type(200).String() != "unknown" {
		t.Fatalf("Type(200).String() = %q", Type(200).String())
	}
}
