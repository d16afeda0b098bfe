package homerange

import (
	"math"
	"sort"
)

type point struct {
	x, y float64
}

// mcpAreaM2 returns the minimum convex polygon area in square meters after
// trimming to the given percentage of points nearest the arithmetic mean
// center. Fewer than 3 distinct points span no area and return 0.
func mcpAreaM2(pts []point, percent float64) float64 {
	trimmed := trimToCenter(pts, percent)
	if distinctCount(trimmed) < 3 {
		return 0
	}
	hull := convexHull(trimmed)
	if len(hull) < 3 {
		return 0
	}
	return shoelaceArea(hull)
}

// trimToCenter keeps the percent of points closest to the mean center,
// dropping the outermost excursions. percent at or above 100 keeps
// everything.
func trimToCenter(pts []point, percent float64) []point {
	if percent >= 100 || len(pts) == 0 {
		return pts
	}
	var cx, cy float64
	for _, p := range pts {
		cx += p.x
		cy += p.y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	ordered := make([]point, len(pts))
	copy(ordered, pts)
	sort.SliceStable(ordered, func(i, j int) bool {
		di := math.Hypot(ordered[i].x-cx, ordered[i].y-cy)
		dj := math.Hypot(ordered[j].x-cx, ordered[j].y-cy)
		return di < dj
	})

	keep := int(math.Ceil(float64(len(ordered)) * percent / 100))
	if keep < 1 {
		keep = 1
	}
	if keep > len(ordered) {
		keep = len(ordered)
	}
	return ordered[:keep]
}

func distinctCount(pts []point) int {
	seen := make(map[point]struct{}, len(pts))
	for _, p := range pts {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// convexHull computes the convex hull with the monotone chain algorithm.
// The result is in counter-clockwise order without the closing point.
func convexHull(pts []point) []point {
	uniq := make([]point, 0, len(pts))
	seen := make(map[point]struct{}, len(pts))
	for _, p := range pts {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].x != uniq[j].x {
			return uniq[i].x < uniq[j].x
		}
		return uniq[i].y < uniq[j].y
	})

	cross := func(o, a, b point) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	lower := make([]point, 0, len(uniq))
	for _, p := range uniq {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	upper := make([]point, 0, len(uniq))
	for i := len(uniq) - 1; i >= 0; i-- {
		p := uniq[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// shoelaceArea returns the enclosed area of a simple polygon.
func shoelaceArea(poly []point) float64 {
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].x*poly[j].y - poly[j].x*poly[i].y
	}
	return math.Abs(sum) / 2
}
