package nakshatra

import (
	"math"
	"testing"
)

func TestFromLongitude(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want Result
	}{
		{"zero", 0, Result{Name: "Ashwini", Pada: 1, Lord: "Ketu", Index: 0}},
		{"second pada", 3.5, Result{Name: "Ashwini", Pada: 2, Lord: "Ketu", Index: 0}},
		{"last pada of ashwini", 13.3, Result{Name: "Ashwini", Pada: 4, Lord: "Ketu", Index: 0}},
		{"bharani", 14, Result{Name: "Bharani", Pada: 1, Lord: "Venus", Index: 1}},
		{"rohini", 45.2, Result{Name: "Rohini", Pada: 2, Lord: "Moon", Index: 3}},
		{"anuradha", 216.5, Result{Name: "Anuradha", Pada: 1, Lord: "Saturn", Index: 16}},
		{"magha starts second cycle", 120.5, Result{Name: "Magha", Pada: 1, Lord: "Ketu", Index: 9}},
		{"just before 360", 359.999, Result{Name: "Revati", Pada: 4, Lord: "Mercury", Index: 26}},
		{"exactly 360 wraps", 360, Result{Name: "Ashwini", Pada: 1, Lord: "Ketu", Index: 0}},
		{"negative wraps", -1, Result{Name: "Revati", Pada: 4, Lord: "Mercury", Index: 26}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromLongitude(tt.deg); got != tt.want {
				t.Errorf("FromLongitude(%v) = %+v, want %+v", tt.deg, got, tt.want)
			}
		})
	}
}

func TestFromLongitude_Periodic(t *testing.T) {
	for _, deg := range []float64{0, 7.25, 45.2, 133.33, 216.5, 300, 359.5} {
		base := FromLongitude(deg)
		for _, k := range []float64{-2, -1, 1, 3} {
			if got := FromLongitude(deg + 360*k); got != base {
				t.Errorf("FromLongitude(%v) = %+v, want %+v", deg+360*k, got, base)
			}
		}
	}
}

func TestFromLongitude_AlwaysInRange(t *testing.T) {
	inputs := []float64{
		-1e9, -720.5, -0.0001, 0, 1e-12, 13.333333333333334, 180,
		359.99999999, 1e9, math.NaN(), math.Inf(1), math.Inf(-1),
	}
	for _, deg := range inputs {
		r := FromLongitude(deg)
		if r.Index < 0 || r.Index > 26 {
			t.Errorf("FromLongitude(%v).Index = %d", deg, r.Index)
		}
		if r.Pada < 1 || r.Pada > 4 {
			t.Errorf("FromLongitude(%v).Pada = %d", deg, r.Pada)
		}
		if r.Name != Names[r.Index] || r.Lord != Lord(r.Index) {
			t.Errorf("FromLongitude(%v) tables disagree: %+v", deg, r)
		}
	}
}

func TestFromLongitude_NonFinite(t *testing.T) {
	zero := FromLongitude(0)
	for _, deg := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := FromLongitude(deg); got != zero {
			t.Errorf("FromLongitude(%v) = %+v, want %+v", deg, got, zero)
		}
	}
}

func TestLord(t *testing.T) {
	// the nine-lord cycle repeats every nine mansions
	for i := 0; i < Count; i++ {
		if Lord(i) != Lord(i%9) {
			t.Errorf("Lord(%d) = %s, want %s", i, Lord(i), Lord(i%9))
		}
	}
	if Lord(8) != "Mercury" || Lord(26) != "Mercury" {
		t.Errorf("Lord(8) = %s, Lord(26) = %s", Lord(8), Lord(26))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{725, 5},
		{-90, 270},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
