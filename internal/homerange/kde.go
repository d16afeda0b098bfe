package homerange

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// kdeGrid is a kernel density surface evaluated over a regular grid spanning
// the fixes plus a three-bandwidth margin. Cell masses are normalised so they
// sum to 1.
type kdeGrid struct {
	masses     []float64 // len gridSize*gridSize
	cellArea   float64   // m² per cell
	size       int
	minX, minY float64
	dx, dy     float64
}

// newKDEGrid evaluates a Gaussian kernel density estimate over the points
// with per-axis Silverman bandwidths (1.06 sigma n^-1/5). Returns nil when
// the points are degenerate (no spread on either axis), in which case the
// density surface spans no area.
func newKDEGrid(pts []point, gridSize int) *kdeGrid {
	if len(pts) < 2 || gridSize < 2 {
		return nil
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.x
		ys[i] = p.y
	}
	n := float64(len(pts))
	hx := 1.06 * stat.StdDev(xs, nil) * math.Pow(n, -0.2)
	hy := 1.06 * stat.StdDev(ys, nil) * math.Pow(n, -0.2)
	if hx <= 0 || hy <= 0 {
		return nil
	}

	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)
	minX, maxX = minX-3*hx, maxX+3*hx
	minY, maxY = minY-3*hy, maxY+3*hy

	dx := (maxX - minX) / float64(gridSize)
	dy := (maxY - minY) / float64(gridSize)

	g := &kdeGrid{
		masses:   make([]float64, gridSize*gridSize),
		cellArea: dx * dy,
		size:     gridSize,
		minX:     minX,
		minY:     minY,
		dx:       dx,
		dy:       dy,
	}
	var total float64
	for row := 0; row < gridSize; row++ {
		cy := minY + (float64(row)+0.5)*dy
		for col := 0; col < gridSize; col++ {
			cx := minX + (float64(col)+0.5)*dx
			var density float64
			for _, p := range pts {
				ux := (cx - p.x) / hx
				uy := (cy - p.y) / hy
				density += math.Exp(-0.5 * (ux*ux + uy*uy))
			}
			m := density // constant factors cancel in the normalisation
			g.masses[row*gridSize+col] = m
			total += m
		}
	}
	if total <= 0 {
		return nil
	}
	for i := range g.masses {
		g.masses[i] /= total
	}
	return g
}

// isoplethAreaM2 returns the area of the smallest set of highest-density
// cells that together capture at least percent of the probability mass.
// Larger percentages always cover at least as many cells, so areas are
// monotone in the isopleth level.
func (g *kdeGrid) isoplethAreaM2(percent float64) float64 {
	if g == nil || percent <= 0 {
		return 0
	}
	target := percent / 100
	if target > 1 {
		target = 1
	}
	sorted := make([]float64, len(g.masses))
	copy(sorted, g.masses)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var cum float64
	for i, m := range sorted {
		cum += m
		if cum >= target {
			return float64(i+1) * g.cellArea
		}
	}
	return float64(len(sorted)) * g.cellArea
}

// isoplethCells returns the centers of the cells making up the isopleth, for
// plotting. Cell selection matches isoplethAreaM2 exactly.
func (g *kdeGrid) isoplethCells(percent float64) [][2]float64 {
	if g == nil || percent <= 0 {
		return nil
	}
	target := percent / 100
	if target > 1 {
		target = 1
	}
	order := make([]int, len(g.masses))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return g.masses[order[a]] > g.masses[order[b]] })

	var cum float64
	var cells [][2]float64
	for _, idx := range order {
		row, col := idx/g.size, idx%g.size
		cells = append(cells, [2]float64{
			g.minX + (float64(col)+0.5)*g.dx,
			g.minY + (float64(row)+0.5)*g.dy,
		})
		cum += g.masses[idx]
		if cum >= target {
			break
		}
	}
	return cells
}

func minMax(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
