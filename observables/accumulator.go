// Package observables accumulates running statistics over read-only particle
// snapshots: pair-correlation histograms and the statistics of the internal
// force projected on the particle orientation.
package observables

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/abp2d/sim"
)

// Mode selects the correlation binning scheme.
type Mode int

const (
	// ModePolar bins pairs by separation and by both orientations measured
	// relative to the separation direction: (r, theta1, theta2).
	ModePolar Mode = iota
	// ModeLess keeps only (r, theta1).
	ModeLess
	// ModeCartesian bins the periodic displacement directly, with the
	// orientation difference as third axis: (dx, dy, theta2-theta1).
	ModeCartesian
)

// Accumulator updates running statistics from simulation snapshots. It never
// mutates a snapshot.
type Accumulator struct {
	length    float64
	nParts    int
	mode      Mode
	stepR     float64
	divAngle  int
	divR      int // radial divisions (polar modes)
	divX      int // per-axis divisions (cartesian mode)
	scalR     float64
	scalAngle float64

	nCalls   int
	fAlong   []float64 // per-call mean of force projected on orientation
	fAlongSq []float64
	correls  []int64

	cosBuf, sinBuf []float64
}

// New creates an accumulator for snapshots of a system with the given domain
// length and particle count. stepR is the width of a spatial division and
// divAngle the number of angular divisions.
func New(length float64, nParts int, stepR float64, divAngle int, mode Mode) (*Accumulator, error) {
	if stepR <= 0 {
		return nil, fmt.Errorf("observables: step_r must be strictly positive, got %g", stepR)
	}
	if divAngle <= 0 {
		return nil, fmt.Errorf("observables: div_angle must be strictly positive, got %d", divAngle)
	}

	a := &Accumulator{
		length:    length,
		nParts:    nParts,
		mode:      mode,
		stepR:     stepR,
		divAngle:  divAngle,
		scalR:     1 / stepR,
		scalAngle: float64(divAngle) / (2 * math.Pi),
		cosBuf:    make([]float64, nParts),
		sinBuf:    make([]float64, nParts),
	}

	switch mode {
	case ModePolar:
		a.divR = max(int(length/2*a.scalR), 1)
		a.correls = make([]int64, a.divR*divAngle*divAngle)
	case ModeLess:
		a.divR = max(int(length/2*a.scalR), 1)
		a.correls = make([]int64, a.divR*divAngle)
	case ModeCartesian:
		a.divX = max(int(length*a.scalR), 1)
		a.correls = make([]int64, a.divX*a.divX*divAngle)
	default:
		return nil, fmt.Errorf("observables: unknown mode %d", mode)
	}
	return a, nil
}

// ModeFor maps the configuration flags to a binning mode. Cartesian wins if
// both are set, matching the flag precedence of the CLI.
func ModeFor(less, cartesian bool) Mode {
	switch {
	case cartesian:
		return ModeCartesian
	case less:
		return ModeLess
	default:
		return ModePolar
	}
}

// Sample updates all statistics from one snapshot.
func (a *Accumulator) Sample(snap sim.Snapshot) {
	for i, th := range snap.Theta {
		a.sinBuf[i], a.cosBuf[i] = math.Sincos(th)
	}

	// Mean over particles of the force along the orientation.
	f := (floats.Dot(snap.FX, a.cosBuf) + floats.Dot(snap.FY, a.sinBuf)) / float64(a.nParts)
	a.fAlong = append(a.fAlong, f)
	a.fAlongSq = append(a.fAlongSq, f*f)

	// Pair correlations over every ordered pair, via minimum image.
	for i := 0; i < a.nParts; i++ {
		for j := i + 1; j < a.nParts; j++ {
			dx := sim.MinImage(snap.X[j]-snap.X[i], a.length)
			dy := sim.MinImage(snap.Y[j]-snap.Y[i], a.length)
			a.countPair(dx, dy, snap.Theta[i], snap.Theta[j])
			a.countPair(-dx, -dy, snap.Theta[j], snap.Theta[i])
		}
	}

	a.nCalls++
}

// countPair bins one ordered pair with displacement (dx, dy) from the first
// particle (orientation th1) to the second (orientation th2).
func (a *Accumulator) countPair(dx, dy, th1, th2 float64) {
	switch a.mode {
	case ModeCartesian:
		bx := int(sim.Wrap(dx, a.length) * a.scalR)
		if bx >= a.divX {
			bx = a.divX - 1
		}
		by := int(sim.Wrap(dy, a.length) * a.scalR)
		if by >= a.divX {
			by = a.divX - 1
		}
		bt := a.angleBin(th2 - th1)
		a.correls[(bx*a.divX+by)*a.divAngle+bt]++

	default:
		dr := math.Hypot(dx, dy)
		br := int(dr * a.scalR)
		if br >= a.divR {
			return
		}
		phi := math.Atan2(dy, dx)
		b1 := a.angleBin(th1 - phi)
		if a.mode == ModeLess {
			a.correls[br*a.divAngle+b1]++
			return
		}
		b2 := a.angleBin(th2 - phi)
		a.correls[(br*a.divAngle+b1)*a.divAngle+b2]++
	}
}

func (a *Accumulator) angleBin(th float64) int {
	b := int(sim.Wrap(th, 2*math.Pi) * a.scalAngle)
	if b >= a.divAngle {
		b = a.divAngle - 1
	}
	return b
}

// Summary holds the aggregated internal-force statistics.
type Summary struct {
	NCalls     int
	FAlongMean float64 // mean over calls of the per-call force-along mean
	FAlongMsq  float64 // mean of the squared per-call means
	FAlongVar  float64 // variance across calls
}

// Summary aggregates the per-call force statistics collected so far.
func (a *Accumulator) Summary() Summary {
	if a.nCalls == 0 {
		return Summary{}
	}
	return Summary{
		NCalls:     a.nCalls,
		FAlongMean: stat.Mean(a.fAlong, nil),
		FAlongMsq:  stat.Mean(a.fAlongSq, nil),
		FAlongVar:  stat.Variance(a.fAlong, nil),
	}
}

// LastFAlong returns the force-along mean of the most recent sample, for
// progress reporting. Zero before the first sample.
func (a *Accumulator) LastFAlong() float64 {
	if len(a.fAlong) == 0 {
		return 0
	}
	return a.fAlong[len(a.fAlong)-1]
}

// Correls exposes the raw histogram counts, row-major over Dims.
func (a *Accumulator) Correls() []int64 {
	return a.correls
}

// Dims returns the histogram dimensions for the active mode.
func (a *Accumulator) Dims() []int {
	switch a.mode {
	case ModeLess:
		return []int{a.divR, a.divAngle}
	case ModeCartesian:
		return []int{a.divX, a.divX, a.divAngle}
	default:
		return []int{a.divR, a.divAngle, a.divAngle}
	}
}

// Mode returns the active binning mode.
func (a *Accumulator) Mode() Mode {
	return a.mode
}

// NCalls returns how many snapshots have been sampled.
func (a *Accumulator) NCalls() int {
	return a.nCalls
}
