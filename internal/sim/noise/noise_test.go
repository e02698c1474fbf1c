package noise

import "testing"

func TestField_Deterministic(t *testing.T) {
	a := New(1337)
	b := New(1337)
	for i := 0; i < 64; i++ {
		x := float64(i) * 0.173
		z := float64(i) * -0.311
		if a.Sample2D(x, z) != b.Sample2D(x, z) {
			t.Fatalf("2D sample diverged at %d", i)
		}
		if a.Sample3D(x, z, x+z) != b.Sample3D(x, z, x+z) {
			t.Fatalf("3D sample diverged at %d", i)
		}
	}
}

func TestField_PureEvaluation(t *testing.T) {
	f := New(42)
	first := f.Sample2D(0.5, 0.25)
	for i := 0; i < 10; i++ {
		f.Sample3D(float64(i), 0.1, 0.2)
		if got := f.Sample2D(0.5, 0.25); got != first {
			t.Fatalf("sampling mutated the field: %v != %v", got, first)
		}
	}
}

func TestField_SeedsDecorrelated(t *testing.T) {
	a := New(7)
	b := New(8)
	same := 0
	const n = 128
	for i := 0; i < n; i++ {
		x := float64(i) * 0.37
		if a.Sample2D(x, x) == b.Sample2D(x, x) {
			same++
		}
	}
	if same > n/4 {
		t.Fatalf("seeds 7 and 8 agree on %d/%d samples", same, n)
	}
}

func TestField_RangeBound(t *testing.T) {
	f := New(99)
	for i := -64; i < 64; i++ {
		v := f.Sample3D(float64(i)*0.41, float64(i)*0.07, float64(-i)*0.23)
		if v < -1 || v > 1 {
			t.Fatalf("sample out of [-1,1]: %v", v)
		}
	}
}
