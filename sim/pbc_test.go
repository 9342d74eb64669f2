package sim

import (
	"math"
	"testing"
)

func TestWrap(t *testing.T) {
	const length = 10.0
	const eps = 1e-9

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"already inside is a no-op", 3.7, 3.7},
		{"zero stays zero", 0, 0},
		{"just below length stays", length - eps, length - eps},
		{"length wraps to zero", length, 0},
		{"length plus eps wraps to eps", length + eps, eps},
		{"negative eps wraps to length minus eps", -eps, length - eps},
		{"full negative period", -length - eps, length - eps},
		{"multiple periods", 3*length + 1.5, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.v, length)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Wrap(%v, %v) = %v, want %v", tt.v, length, got, tt.want)
			}
			if got < 0 || got >= length {
				t.Errorf("Wrap(%v, %v) = %v, outside [0, %v)", tt.v, length, got, length)
			}
		})
	}
}

func TestMinImage(t *testing.T) {
	const length = 10.0

	tests := []struct {
		name string
		d    float64
		want float64
	}{
		{"short delta unchanged", 1.5, 1.5},
		{"negative short delta unchanged", -1.5, -1.5},
		{"half length stays", 5.0, 5.0},
		{"negative half length flips", -5.0, 5.0},
		{"beyond half wraps negative", 6.0, -4.0},
		{"beyond negative half wraps positive", -6.0, 4.0},
		{"near full period", 9.9, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinImage(tt.d, length)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("MinImage(%v, %v) = %v, want %v", tt.d, length, got, tt.want)
			}
			if got <= -length/2 || got > length/2 {
				t.Errorf("MinImage(%v, %v) = %v, outside (-%v, %v]", tt.d, length, got, length/2, length/2)
			}
		})
	}
}
