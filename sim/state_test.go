package sim

import (
	"math"
	"testing"
)

// fixedNoise is a NoiseSource test double. Uniform draws return the midpoint
// of the range; Gaussian draws cycle through preset values scaled by the
// requested stddev, or zero when none are set.
type fixedNoise struct {
	gaussian []float64
	next     int
}

func (f *fixedNoise) Uniform(low, high float64) float64 {
	return (low + high) / 2
}

func (f *fixedNoise) UniformSlice(dst []float64, low, high float64) {
	for i := range dst {
		dst[i] = f.Uniform(low, high)
	}
}

func (f *fixedNoise) Gaussian(mean, stddev float64) float64 {
	if len(f.gaussian) == 0 {
		return mean
	}
	v := f.gaussian[f.next%len(f.gaussian)]
	f.next++
	return mean + stddev*v
}

func (f *fixedNoise) GaussianSlice(dst []float64, mean, stddev float64) {
	for i := range dst {
		dst[i] = f.Gaussian(mean, stddev)
	}
}

func testParams(length float64, n int) Params {
	return Params{
		Length:      length,
		NParts:      n,
		PotStrength: 1,
		Temperature: 0,
		RotDif:      0,
		Activity:    0,
		DT:          0.01,
	}
}

func TestParamsValidation(t *testing.T) {
	base := testParams(10, 4)
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero length", func(p *Params) { p.Length = 0 }},
		{"zero particles", func(p *Params) { p.NParts = 0 }},
		{"zero potential", func(p *Params) { p.PotStrength = 0 }},
		{"zero timestep", func(p *Params) { p.DT = 0 }},
		{"negative temperature", func(p *Params) { p.Temperature = -0.1 }},
		{"negative rotational diffusivity", func(p *Params) { p.RotDif = -1 }},
		{"negative activity", func(p *Params) { p.Activity = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			if _, err := NewState(p, &fixedNoise{}); err == nil {
				t.Error("expected a construction error")
			}
		})
	}
	if _, err := NewState(base, &fixedNoise{}); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}
}

func TestTwoParticleRepulsionStep(t *testing.T) {
	// Two particles on the x axis at separation 0.5 in a length-10 box.
	// The harmonic sphere pushes them apart with magnitude
	// k*(1/r - 1)*r = 0.5, so one deterministic step moves each by
	// dt*0.5 along the axis.
	s, err := NewState(testParams(10, 2), &fixedNoise{})
	if err != nil {
		t.Fatal(err)
	}
	s.SetParticle(0, 5.0, 5.0, 0)
	s.SetParticle(1, 5.5, 5.0, 0)
	// Zero activity keeps the orientation out of the update.
	if err := s.Tune(1, 0, 0, 0); err != nil {
		t.Fatal(err)
	}

	s.ComputeForces()
	snap := s.Snapshot()
	if math.Abs(snap.FX[0]-(-0.5)) > 1e-12 || math.Abs(snap.FX[1]-0.5) > 1e-12 {
		t.Fatalf("forces along x = %v, %v; want -0.5, 0.5", snap.FX[0], snap.FX[1])
	}
	if math.Abs(snap.FY[0]) > 1e-12 || math.Abs(snap.FY[1]) > 1e-12 {
		t.Fatalf("forces along y = %v, %v; want 0, 0", snap.FY[0], snap.FY[1])
	}

	s.Integrate()
	snap = s.Snapshot()
	if math.Abs(snap.X[0]-4.995) > 1e-12 {
		t.Errorf("particle 0 at x=%v, want 4.995", snap.X[0])
	}
	if math.Abs(snap.X[1]-5.505) > 1e-12 {
		t.Errorf("particle 1 at x=%v, want 5.505", snap.X[1])
	}
}

func TestInteractionCutoff(t *testing.T) {
	cases := []struct {
		name       string
		separation float64
		interacts  bool
	}{
		{"inside cutoff", 0.9, true},
		{"exactly at cutoff", 1.0, false},
		{"beyond cutoff", 1.5, false},
		{"exact overlap", 0.0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewState(testParams(10, 2), &fixedNoise{})
			if err != nil {
				t.Fatal(err)
			}
			s.SetParticle(0, 4, 4, 0)
			s.SetParticle(1, 4+tc.separation, 4, 0)
			s.ComputeForces()
			snap := s.Snapshot()
			nonzero := snap.FX[0] != 0 || snap.FX[1] != 0
			if nonzero != tc.interacts {
				t.Errorf("separation %g: interacting=%v, want %v", tc.separation, nonzero, tc.interacts)
			}
		})
	}
}

func TestForceAcrossPeriodicBoundary(t *testing.T) {
	// Separated by 9.6 directly, 0.4 through the boundary.
	s, err := NewState(testParams(10, 2), &fixedNoise{})
	if err != nil {
		t.Fatal(err)
	}
	s.SetParticle(0, 0.2, 5, 0)
	s.SetParticle(1, 9.8, 5, 0)
	s.ComputeForces()

	snap := s.Snapshot()
	want := 1 * (1/0.4 - 1) * 0.4 // k*(1/r - 1) * dx
	if math.Abs(snap.FX[0]-want) > 1e-12 {
		t.Errorf("force on particle 0 = %v, want %v", snap.FX[0], want)
	}
	if math.Abs(snap.FX[1]+want) > 1e-12 {
		t.Errorf("force on particle 1 = %v, want %v", snap.FX[1], -want)
	}
}

func TestTotalForceIsZero(t *testing.T) {
	noise, err := NewNoiseSource("batch", 31)
	if err != nil {
		t.Fatal(err)
	}
	p := testParams(8, 200)
	p.Activity = 1
	p.Temperature = 0.1
	p.RotDif = 1
	s, err := NewState(p, noise)
	if err != nil {
		t.Fatal(err)
	}
	s.ComputeForces()

	snap := s.Snapshot()
	var sumX, sumY float64
	for i := range snap.FX {
		sumX += snap.FX[i]
		sumY += snap.FY[i]
	}
	if math.Abs(sumX) > 1e-9 || math.Abs(sumY) > 1e-9 {
		t.Errorf("net force = (%v, %v), want (0, 0)", sumX, sumY)
	}
}

func TestFreeParticleSelfPropulsion(t *testing.T) {
	p := testParams(10, 1)
	p.Activity = 2
	s, err := NewState(p, &fixedNoise{})
	if err != nil {
		t.Fatal(err)
	}
	s.SetParticle(0, 5, 5, math.Pi/3)

	s.Evolve()
	snap := s.Snapshot()

	wantX := 5 + 0.01*2*math.Cos(math.Pi/3)
	wantY := 5 + 0.01*2*math.Sin(math.Pi/3)
	if math.Abs(snap.X[0]-wantX) > 1e-12 {
		t.Errorf("x = %v, want %v", snap.X[0], wantX)
	}
	if math.Abs(snap.Y[0]-wantY) > 1e-12 {
		t.Errorf("y = %v, want %v", snap.Y[0], wantY)
	}
	if math.Abs(snap.Theta[0]-math.Pi/3) > 1e-12 {
		t.Errorf("theta = %v, want unchanged %v", snap.Theta[0], math.Pi/3)
	}
}

func TestInjectedNoiseEntersUpdate(t *testing.T) {
	p := testParams(10, 1)
	p.Temperature = 0.5
	p.RotDif = 2
	s, err := NewState(p, &fixedNoise{gaussian: []float64{1}})
	if err != nil {
		t.Fatal(err)
	}
	s.SetParticle(0, 5, 5, 0)

	s.Evolve()
	snap := s.Snapshot()

	stdTemp := math.Sqrt(2 * 0.5 * 0.01)
	stdRot := math.Sqrt(2 * 2 * 0.01)
	if math.Abs(snap.X[0]-(5+stdTemp)) > 1e-12 {
		t.Errorf("x = %v, want %v", snap.X[0], 5+stdTemp)
	}
	if math.Abs(snap.Y[0]-(5+stdTemp)) > 1e-12 {
		t.Errorf("y = %v, want %v", snap.Y[0], 5+stdTemp)
	}
	if math.Abs(snap.Theta[0]-stdRot) > 1e-12 {
		t.Errorf("theta = %v, want %v", snap.Theta[0], stdRot)
	}
}

func TestEvolveWrapsPositions(t *testing.T) {
	p := testParams(10, 1)
	p.Activity = 3
	s, err := NewState(p, &fixedNoise{})
	if err != nil {
		t.Fatal(err)
	}
	s.SetParticle(0, 9.999, 9.999, math.Pi/4)

	for i := 0; i < 100; i++ {
		s.Evolve()
	}
	snap := s.Snapshot()
	if snap.X[0] < 0 || snap.X[0] >= 10 || snap.Y[0] < 0 || snap.Y[0] >= 10 {
		t.Errorf("position (%v, %v) escaped the domain", snap.X[0], snap.Y[0])
	}
	if snap.Theta[0] < 0 || snap.Theta[0] >= 2*math.Pi {
		t.Errorf("orientation %v escaped [0, 2*pi)", snap.Theta[0])
	}
}

func TestSeededRunIsReproducible(t *testing.T) {
	run := func() Snapshot {
		noise, err := NewNoiseSource("scalar", 123)
		if err != nil {
			t.Fatal(err)
		}
		p := testParams(8, 100)
		p.Activity = 1
		p.Temperature = 0.1
		p.RotDif = 1
		s, err := NewState(p, noise)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 50; i++ {
			s.Evolve()
		}
		return s.Snapshot()
	}

	a, b := run(), run()
	for i := range a.X {
		if a.X[i] != b.X[i] || a.Y[i] != b.Y[i] || a.Theta[i] != b.Theta[i] {
			t.Fatalf("particle %d diverged between identically seeded runs", i)
		}
	}
}

// bruteForces recomputes the net forces with a direct O(N^2) pair sweep under
// the minimum image convention, bypassing the cell partition entirely.
func bruteForces(snap Snapshot, potStrength float64) ([]float64, []float64) {
	n := len(snap.X)
	fxs := make([]float64, n)
	fys := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := MinImage(snap.X[i]-snap.X[j], snap.Length)
			dy := MinImage(snap.Y[i]-snap.Y[j], snap.Length)
			dr2 := dx*dx + dy*dy
			if dr2*(1-dr2) <= 0 {
				continue
			}
			u := potStrength * (1/math.Sqrt(dr2) - 1)
			fxs[i] += u * dx
			fxs[j] -= u * dx
			fys[i] += u * dy
			fys[j] -= u * dy
		}
	}
	return fxs, fys
}

func TestCellListMatchesBruteForce(t *testing.T) {
	for _, length := range []float64{0.8, 2.5, 6, 15} {
		noise, err := NewNoiseSource("batch", 77)
		if err != nil {
			t.Fatal(err)
		}
		p := testParams(length, 150)
		p.PotStrength = 10
		s, err := NewState(p, noise)
		if err != nil {
			t.Fatal(err)
		}
		s.ComputeForces()

		snap := s.Snapshot()
		wantX, wantY := bruteForces(snap, p.PotStrength)
		for i := range wantX {
			if math.Abs(snap.FX[i]-wantX[i]) > 1e-9 || math.Abs(snap.FY[i]-wantY[i]) > 1e-9 {
				t.Fatalf("length %g: particle %d force (%v, %v), brute force (%v, %v)",
					length, i, snap.FX[i], snap.FY[i], wantX[i], wantY[i])
			}
		}
	}
}

func TestParallelForcePassMatchesSerial(t *testing.T) {
	build := func(workers int) *State {
		noise, err := NewNoiseSource("batch", 55)
		if err != nil {
			t.Fatal(err)
		}
		p := testParams(10, 300)
		p.PotStrength = 10
		p.Workers = workers
		p.ParallelThreshold = 1
		s, err := NewState(p, noise)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	serial := build(0)
	parallel := build(4)
	defer parallel.Close()

	serial.ComputeForces()
	parallel.ComputeForces()

	// Summation order differs between the serial sweep and the per-worker
	// reduction, so compare within float tolerance rather than bitwise.
	a, b := serial.Snapshot(), parallel.Snapshot()
	for i := range a.FX {
		if math.Abs(a.FX[i]-b.FX[i]) > 1e-9 || math.Abs(a.FY[i]-b.FY[i]) > 1e-9 {
			t.Fatalf("particle %d: serial force (%v, %v), parallel force (%v, %v)",
				i, a.FX[i], a.FY[i], b.FX[i], b.FY[i])
		}
	}
}

func TestTuneRejectsInvalidParameters(t *testing.T) {
	s, err := NewState(testParams(10, 2), &fixedNoise{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Tune(0, 0.1, 1, 1); err == nil {
		t.Error("expected an error for zero potential strength")
	}
	if err := s.Tune(10, -0.1, 1, 1); err == nil {
		t.Error("expected an error for negative temperature")
	}
	if err := s.Tune(10, 0.1, 1, 1); err != nil {
		t.Errorf("valid tune rejected: %v", err)
	}
}

func BenchmarkForcePass(b *testing.B) {
	noise, err := NewNoiseSource("batch", 1)
	if err != nil {
		b.Fatal(err)
	}
	p := testParams(50, 1000)
	p.PotStrength = 10
	s, err := NewState(p, noise)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.ComputeForces()
	}
}
