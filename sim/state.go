// Package sim implements the particle-state evolution engine: a cell-list
// spatial partition over a periodic square domain, the harmonic-sphere pair
// force, and the Euler-Maruyama integration of the coupled Langevin dynamics
// of interacting active Brownian particles.
package sim

import (
	"fmt"
	"math"
)

// Params holds the construction parameters of a State.
type Params struct {
	Length      float64 // side of the periodic square domain
	NParts      int     // number of particles, fixed for the run
	PotStrength float64 // strength of the harmonic-sphere repulsion
	Temperature float64 // translational noise temperature
	RotDif      float64 // rotational diffusivity
	Activity    float64 // self-propulsion speed along the orientation
	DT          float64 // timestep

	// Workers enables the parallel force pass when > 0; it stays off below
	// ParallelThreshold particles where goroutine overhead dominates.
	Workers           int
	ParallelThreshold int
}

func (p Params) validate() error {
	if p.Length <= 0 {
		return fmt.Errorf("sim: length must be strictly positive, got %g", p.Length)
	}
	if p.NParts <= 0 {
		return fmt.Errorf("sim: particle count must be strictly positive, got %d", p.NParts)
	}
	if p.PotStrength <= 0 {
		return fmt.Errorf("sim: potential strength must be strictly positive, got %g", p.PotStrength)
	}
	if p.DT <= 0 {
		return fmt.Errorf("sim: timestep must be strictly positive, got %g", p.DT)
	}
	if p.Temperature < 0 {
		return fmt.Errorf("sim: temperature must be positive, got %g", p.Temperature)
	}
	if p.RotDif < 0 {
		return fmt.Errorf("sim: rotational diffusivity must be positive, got %g", p.RotDif)
	}
	if p.Activity < 0 {
		return fmt.Errorf("sim: activity must be positive, got %g", p.Activity)
	}
	return nil
}

// State owns the particle arrays and advances them step by step.
//
// Positions, orientations and forces live in parallel arrays: index i refers
// to the same particle in every slice, and all slices always have length
// NParts. Forces are valid only between a force pass and the next position
// update; they are recomputed, never carried over.
type State struct {
	p     Params
	noise NoiseSource
	boxes *Boxes

	xs, ys []float64 // positions, wrapped into [0, length)
	thetas []float64 // orientations, wrapped into [0, 2*pi)
	fxs    []float64 // force accumulators, rebuilt every step
	fys    []float64

	// Noise buffers refilled every step, one draw per particle. Drawing
	// whole arrays in a fixed order (x, then y, then angle) pins the
	// draw-to-index mapping, so a seeded run is reproducible.
	noiseX, noiseY, noiseTheta []float64

	stdTemp float64 // sqrt(2*temperature*dt), the sampled noise amplitude
	stdRot  float64 // sqrt(2*rot_dif*dt)

	gen  uint64 // bumped on every position mutation
	pool *forcePool
}

// NewState builds a state with particles scattered uniformly over the domain
// and uniformly random orientations, drawn from the given noise source.
func NewState(p Params, noise NoiseSource) (*State, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	s := &State{
		p:          p,
		noise:      noise,
		boxes:      NewBoxes(p.Length, p.NParts),
		xs:         make([]float64, p.NParts),
		ys:         make([]float64, p.NParts),
		thetas:     make([]float64, p.NParts),
		fxs:        make([]float64, p.NParts),
		fys:        make([]float64, p.NParts),
		noiseX:     make([]float64, p.NParts),
		noiseY:     make([]float64, p.NParts),
		noiseTheta: make([]float64, p.NParts),
		stdTemp:    math.Sqrt(2 * p.Temperature * p.DT),
		stdRot:     math.Sqrt(2 * p.RotDif * p.DT),
	}

	noise.UniformSlice(s.xs, 0, p.Length)
	noise.UniformSlice(s.ys, 0, p.Length)
	noise.UniformSlice(s.thetas, 0, 2*math.Pi)
	s.gen = 1

	if p.Workers > 0 {
		s.pool = newForcePool(s, p.Workers)
	}
	return s, nil
}

// Params returns the construction parameters.
func (s *State) Params() Params {
	return s.p
}

// Evolve advances the system by one timestep of the coupled Langevin
// dynamics: pair forces, self-propulsion along the orientation, translational
// noise, rotational diffusion, then periodic wrap-around.
func (s *State) Evolve() {
	s.ComputeForces()
	s.Integrate()
}

// Integrate performs the Euler-Maruyama update from the forces of the latest
// force pass. Callers normally use Evolve; the split exists so the driver can
// time the two phases separately.
func (s *State) Integrate() {
	s.noise.GaussianSlice(s.noiseX, 0, s.stdTemp)
	s.noise.GaussianSlice(s.noiseY, 0, s.stdTemp)
	s.noise.GaussianSlice(s.noiseTheta, 0, s.stdRot)

	dt, v0 := s.p.DT, s.p.Activity
	for i := range s.xs {
		sin, cos := math.Sincos(s.thetas[i])
		s.xs[i] += dt*(s.fxs[i]+v0*cos) + s.noiseX[i]
		s.ys[i] += dt*(s.fys[i]+v0*sin) + s.noiseY[i]
		s.thetas[i] += s.noiseTheta[i]
	}

	s.enforcePBC()
	s.gen++
}

// ComputeForces rebuilds the spatial partition from the current positions and
// fills the force accumulators with the net harmonic-sphere force on every
// particle. Evolve calls it every step; it is exported so observables can be
// sampled from a freshly constructed state without advancing it.
func (s *State) ComputeForces() {
	for i := range s.fxs {
		s.fxs[i] = 0
		s.fys[i] = 0
	}

	s.boxes.Rebuild(s.xs, s.ys, s.gen)

	if s.pool != nil && s.p.NParts >= s.p.ParallelThreshold {
		s.pool.run()
		return
	}
	s.forcesForCells(0, s.boxes.NCells(), s.fxs, s.fys)
}

// forcesForCells runs the half-neighbor pair sweep for the cell id range
// [c0, c1), accumulating into the given force arrays. When a cell is paired
// with itself, only pairs with j after i in the membership list are visited,
// so each unordered particle pair is evaluated exactly once.
func (s *State) forcesForCells(c0, c1 int, fxs, fys []float64) {
	for b1 := c0; b1 < c1; b1++ {
		parts1 := s.boxes.ParticlesIn(b1, s.gen)
		for _, b2 := range s.boxes.NeighborCellsOf(b1, s.gen) {
			if b1 == b2 {
				for a, i := range parts1 {
					for _, j := range parts1[a+1:] {
						s.pairForce(i, j, fxs, fys)
					}
				}
				continue
			}
			parts2 := s.boxes.ParticlesIn(b2, s.gen)
			for _, i := range parts1 {
				for _, j := range parts2 {
					s.pairForce(i, j, fxs, fys)
				}
			}
		}
	}
}

// pairForce applies the harmonic-sphere force of particle j on particle i and
// its opposite on j. Pairs at squared distance exactly 0 or at/beyond 1 exert
// no force: the open interaction gate keeps the force finite at overlap and
// the cutoff boundary open.
func (s *State) pairForce(i, j int, fxs, fys []float64) {
	dx := MinImage(s.xs[i]-s.xs[j], s.p.Length)
	dy := MinImage(s.ys[i]-s.ys[j], s.p.Length)
	dr2 := dx*dx + dy*dy

	if dr2*(1-dr2) <= 0 {
		return
	}

	u := s.p.PotStrength * (1/math.Sqrt(dr2) - 1)
	fx := u * dx
	fy := u * dy
	fxs[i] += fx
	fxs[j] -= fx
	fys[i] += fy
	fys[j] -= fy
}

// enforcePBC wraps positions into [0, length) and orientations into [0, 2*pi).
func (s *State) enforcePBC() {
	for i := range s.xs {
		s.xs[i] = Wrap(s.xs[i], s.p.Length)
		s.ys[i] = Wrap(s.ys[i], s.p.Length)
		s.thetas[i] = Wrap(s.thetas[i], 2*math.Pi)
	}
}

// Snapshot is a read-only view of the particle arrays for observable
// sampling. The slices alias the live arrays: they are valid until the next
// Evolve call and must not be mutated.
type Snapshot struct {
	Length float64
	X, Y   []float64
	Theta  []float64
	FX, FY []float64
}

// Snapshot returns the current read-only view. Forces are the ones computed
// by the latest force pass.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Length: s.p.Length,
		X:      s.xs,
		Y:      s.ys,
		Theta:  s.thetas,
		FX:     s.fxs,
		FY:     s.fys,
	}
}

// SetParticle overwrites the position and orientation of one particle. It is
// intended for constructing specific configurations in tools and tests; the
// inputs are wrapped into the domain.
func (s *State) SetParticle(i int, x, y, theta float64) {
	s.xs[i] = Wrap(x, s.p.Length)
	s.ys[i] = Wrap(y, s.p.Length)
	s.thetas[i] = Wrap(theta, 2*math.Pi)
	s.gen++
}

// Tune replaces the dynamical parameters of a running state, validated under
// the same rules as construction. Domain length, particle count and timestep
// are fixed for the life of a state and cannot be tuned.
func (s *State) Tune(potStrength, temperature, rotDif, activity float64) error {
	p := s.p
	p.PotStrength = potStrength
	p.Temperature = temperature
	p.RotDif = rotDif
	p.Activity = activity
	if err := p.validate(); err != nil {
		return err
	}
	s.p = p
	s.stdTemp = math.Sqrt(2 * p.Temperature * p.DT)
	s.stdRot = math.Sqrt(2 * p.RotDif * p.DT)
	return nil
}

// Close releases the worker pool, if any. The state must not be evolved
// afterwards.
func (s *State) Close() {
	if s.pool != nil {
		s.pool.stop()
	}
}
