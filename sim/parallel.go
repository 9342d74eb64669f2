package sim

import "sync"

// The parallel force pass splits the cell range across persistent workers.
// Every chunk carries its own full-length accumulator slot, so no two
// goroutines ever write the same arrays; the slots are then reduced into the
// state's accumulators in fixed slot order. The chunk-to-slot mapping does
// not depend on which goroutine picks a chunk up, so for a fixed worker
// count the summation order is fixed and seeded runs stay reproducible.

// cellChunk is a range of cell ids bound to one accumulator slot.
type cellChunk struct {
	start, end int
	slot       int
}

type forcePool struct {
	state   *State
	workers int

	fxs, fys [][]float64 // per-worker accumulators

	workChan chan cellChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newForcePool(s *State, workers int) *forcePool {
	p := &forcePool{
		state:   s,
		workers: workers,
		fxs:     make([][]float64, workers),
		fys:     make([][]float64, workers),
	}
	for w := 0; w < workers; w++ {
		p.fxs[w] = make([]float64, s.p.NParts)
		p.fys[w] = make([]float64, s.p.NParts)
	}
	return p
}

// start launches the persistent workers.
func (p *forcePool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan cellChunk, p.workers)
	p.doneChan = make(chan struct{}, p.workers)
	p.stopChan = make(chan struct{})
	p.running = true

	for w := 0; w < p.workers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
}

// stop signals all workers to exit and waits for them.
func (p *forcePool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing cell chunks until stopped.
func (p *forcePool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.state.forcesForCells(chunk.start, chunk.end, p.fxs[chunk.slot], p.fys[chunk.slot])
			p.doneChan <- struct{}{}
		}
	}
}

// run dispatches the current cell range to the pool and reduces the worker
// accumulators into the state's force arrays.
func (p *forcePool) run() {
	if !p.running {
		p.start()
	}

	s := p.state
	nCells := s.boxes.NCells()
	chunkSize := (nCells + p.workers - 1) / p.workers

	dispatched := 0
	for w := 0; w < p.workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, nCells)
		if start >= end {
			continue
		}
		clearFloats(p.fxs[w])
		clearFloats(p.fys[w])
		p.workChan <- cellChunk{start: start, end: end, slot: w}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}

	// Reduce in slot order to keep the summation order fixed.
	for w := 0; w < dispatched; w++ {
		for i := range s.fxs {
			s.fxs[i] += p.fxs[w][i]
			s.fys[i] += p.fys[w][i]
		}
	}
}

func clearFloats(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
