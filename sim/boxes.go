package sim

import "fmt"

// Boxes partitions the periodic square domain into a uniform grid of cells
// sized to the interaction cutoff, so that any pair of particles within the
// cutoff is found by scanning a cell against its precomputed neighbor cells.
//
// Neighbor lists follow the half-neighbor convention: every unordered pair of
// interacting cells, a cell paired with itself included, appears in exactly
// one list across the whole grid. A force pass that honors the same-cell
// j-after-i discipline therefore visits each particle pair exactly once.
type Boxes struct {
	length  float64
	grid    int     // cells per side
	cellLen float64 // cell side, always >= 1 unless the domain itself is smaller
	nbrs    [][]int // forward neighbor cell ids per cell
	cells   [][]int // particle indices per cell

	built uint64 // generation of the position arrays this partition was built for
}

// NewBoxes creates the partition for a periodic square of the given side
// length. The grid is the largest one whose cells still cover the interaction
// cutoff of 1; a domain smaller than the cutoff degrades to a single cell.
func NewBoxes(length float64, nParts int) *Boxes {
	grid := int(length)
	if grid < 1 {
		grid = 1
	}

	b := &Boxes{
		length:  length,
		grid:    grid,
		cellLen: length / float64(grid),
		nbrs:    buildNeighborLists(grid),
		cells:   make([][]int, grid*grid),
	}

	perCell := nParts/(grid*grid) + 1
	for i := range b.cells {
		b.cells[i] = make([]int, 0, perCell)
	}
	return b
}

// buildNeighborLists enumerates the forward neighbor cells of every cell.
// Each unordered pair of cells from the periodic 3x3 stencil is claimed by
// the first cell that sees it, which keeps the enumeration exact on
// degenerate grids (1x1, 2x2) where wrapped stencil offsets collide.
func buildNeighborLists(grid int) [][]int {
	n := grid * grid
	lists := make([][]int, n)
	seen := make(map[[2]int]struct{}, 5*n)

	for c := 0; c < n; c++ {
		cx, cy := c%grid, c/grid
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx := ((cx+dx)%grid + grid) % grid
				ny := ((cy+dy)%grid + grid) % grid
				d := ny*grid + nx

				key := [2]int{c, d}
				if d < c {
					key = [2]int{d, c}
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				lists[c] = append(lists[c], d)
			}
		}
	}
	return lists
}

// Rebuild reassigns every particle to its cell from the current, wrapped
// positions. gen identifies the generation of the position arrays; every
// read accessor checks it so a stale partition fails loudly instead of
// silently answering from outdated membership.
func (b *Boxes) Rebuild(xs, ys []float64, gen uint64) {
	for i := range b.cells {
		b.cells[i] = b.cells[i][:0]
	}
	for i := range xs {
		c := b.cellIndex(xs[i], ys[i])
		b.cells[c] = append(b.cells[c], i)
	}
	b.built = gen
}

// NCells returns the total number of cells.
func (b *Boxes) NCells() int {
	return b.grid * b.grid
}

// Grid returns the number of cells per side.
func (b *Boxes) Grid() int {
	return b.grid
}

// NeighborCellsOf returns the forward neighbor list of a cell, the cell
// itself included.
func (b *Boxes) NeighborCellsOf(cell int, gen uint64) []int {
	b.mustBeCurrent(gen)
	return b.nbrs[cell]
}

// ParticlesIn returns the particle indices currently assigned to a cell.
func (b *Boxes) ParticlesIn(cell int, gen uint64) []int {
	b.mustBeCurrent(gen)
	return b.cells[cell]
}

func (b *Boxes) mustBeCurrent(gen uint64) {
	if b.built != gen {
		panic(fmt.Sprintf("sim: partition built for generation %d read at generation %d; call Rebuild first", b.built, gen))
	}
}

// cellIndex maps a wrapped position to its flat cell id. The clamp guards
// against a coordinate landing exactly on length through float rounding.
func (b *Boxes) cellIndex(x, y float64) int {
	cx := int(x / b.cellLen)
	if cx >= b.grid {
		cx = b.grid - 1
	}
	cy := int(y / b.cellLen)
	if cy >= b.grid {
		cy = b.grid - 1
	}
	return cy*b.grid + cx
}
