// Package spatial provides the uniform grid used as the broad phase of
// collision checks.
//
// The grid stores integer indices (not pointers) into a caller-owned slice,
// so a rebuild every tick costs no allocation once the cells have grown.
package spatial

import (
	"math"
	"sort"
)

// Grid buckets entity indices into fixed-size cells over a rectangle that
// extends margin units past every edge of the world. Positions outside that
// rectangle are clamped into the border cells, so nothing is ever lost.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type Grid struct {
	originX, originY float64
	cellSize         float64
	invCellSize      float64 // 1/cellSize for faster division
	cols, rows       int
	cells            [][]uint32
	scratch          []uint32 // reusable buffer for query results
	count            int
}

// NewGrid creates a grid for a width x height world plus margin on each side.
// cellSize should be close to the largest query radius.
func NewGrid(width, height, margin, cellSize float64, expected int) *Grid {
	if cellSize <= 0 {
		cellSize = 100
	}
	if margin < 0 {
		margin = 0
	}
	cols := int(math.Ceil((width + 2*margin) / cellSize))
	rows := int(math.Ceil((height + 2*margin) / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	perCell := expected / len(cells)
	if perCell < 4 {
		perCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &Grid{
		originX:     -margin,
		originY:     -margin,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds index id at position (x, y).
func (g *Grid) Insert(id uint32, x, y float64) {
	col, row := g.cellOf(x, y)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
	g.count++
}

// Len returns the number of inserted entries.
func (g *Grid) Len() int {
	return g.count
}

func (g *Grid) cellOf(x, y float64) (col, row int) {
	return clamp(g.colOf(x), g.cols), clamp(g.rowOf(y), g.rows)
}

func (g *Grid) colOf(x float64) int {
	return int(math.Floor((x - g.originX) * g.invCellSize))
}

func (g *Grid) rowOf(y float64) int {
	return int(math.Floor((y - g.originY) * g.invCellSize))
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// QueryRadius returns every index whose cell overlaps the square around
// (cx, cy) with half-side radius, in ascending order.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates may lie outside the radius; callers do the exact distance check.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	// Both ends are clamped: a query centred far outside the grid still
	// reaches the border cells that clamped inserts landed in.
	minCol := clamp(g.colOf(cx-radius), g.cols)
	maxCol := clamp(g.colOf(cx+radius), g.cols)
	minRow := clamp(g.rowOf(cy-radius), g.rows)
	maxRow := clamp(g.rowOf(cy+radius), g.rows)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	sort.Slice(g.scratch, func(i, j int) bool { return g.scratch[i] < g.scratch[j] })
	return g.scratch
}

// Stats returns grid statistics for debugging/profiling.
func (g *Grid) Stats() GridStats {
	var maxInCell, nonEmpty int
	for _, cell := range g.cells {
		if n := len(cell); n > 0 {
			nonEmpty++
			if n > maxInCell {
				maxInCell = n
			}
		}
	}
	return GridStats{
		TotalCells:    len(g.cells),
		NonEmptyCells: nonEmpty,
		TotalEntities: g.count,
		MaxInCell:     maxInCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells    int `json:"totalCells"`
	NonEmptyCells int `json:"nonEmptyCells"`
	TotalEntities int `json:"totalEntities"`
	MaxInCell     int `json:"maxInCell"`
}
