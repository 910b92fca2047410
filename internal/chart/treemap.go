package chart

import (
	"math"
	"sort"
)

// Rect is an axis-aligned rectangle in layout units.
type Rect struct {
	X, Y, W, H float64
}

// Tile is a laid-out treemap cell for the item at Index.
type Tile struct {
	Index int
	Rect
}

// Squarify lays values out inside bounds using the squarified treemap
// algorithm (Bruls, Huizing, van Wijk). Non-positive values get no tile.
// Tiles are returned in descending value order.
func Squarify(values []float64, bounds Rect) []Tile {
	type item struct {
		index int
		value float64
	}
	var items []item
	total := 0.0
	for i, v := range values {
		if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			items = append(items, item{i, v})
			total += v
		}
	}
	if len(items) == 0 || bounds.W <= 0 || bounds.H <= 0 {
		return nil
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].value > items[b].value })

	scale := bounds.W * bounds.H / total
	areas := make([]float64, len(items))
	for i, it := range items {
		areas[i] = it.value * scale
	}

	tiles := make([]Tile, 0, len(items))
	free := bounds
	start := 0
	for start < len(areas) {
		side := math.Min(free.W, free.H)
		end := start + 1
		for end < len(areas) && worst(areas[start:end+1], side) <= worst(areas[start:end], side) {
			end++
		}

		row := areas[start:end]
		sum := 0.0
		for _, a := range row {
			sum += a
		}

		if free.W >= free.H {
			// column on the left
			w := sum / free.H
			y := free.Y
			for i, a := range row {
				h := a / w
				tiles = append(tiles, Tile{Index: items[start+i].index, Rect: Rect{free.X, y, w, h}})
				y += h
			}
			free = Rect{free.X + w, free.Y, free.W - w, free.H}
		} else {
			// row along the top
			h := sum / free.W
			x := free.X
			for i, a := range row {
				w := a / h
				tiles = append(tiles, Tile{Index: items[start+i].index, Rect: Rect{x, free.Y, w, h}})
				x += w
			}
			free = Rect{free.X, free.Y + h, free.W, free.H - h}
		}
		start = end
	}
	return tiles
}

// worst returns the highest aspect ratio of a row of areas laid along side.
func worst(row []float64, side float64) float64 {
	sum, lo, hi := 0.0, math.Inf(1), 0.0
	for _, a := range row {
		sum += a
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if sum == 0 || lo == 0 {
		return math.Inf(1)
	}
	s2 := side * side
	sum2 := sum * sum
	return math.Max(s2*hi/sum2, sum2/(s2*lo))
}

// GridCell is a tile snapped to a grid of whole cells (0-based, end exclusive).
type GridCell struct {
	Index      int
	Col0, Row0 int
	Col1, Row1 int
}

// Snap maps tiles laid out in bounds onto a cols x rows grid. Edges are
// rounded, so neighbouring tiles share boundaries and never overlap. Tiles
// that collapse to zero cells are dropped; see droppedTiles.
func Snap(tiles []Tile, bounds Rect, cols, rows int) []GridCell {
	sx := float64(cols) / bounds.W
	sy := float64(rows) / bounds.H
	out := make([]GridCell, 0, len(tiles))
	for _, t := range tiles {
		c0 := int(math.Round((t.X - bounds.X) * sx))
		c1 := int(math.Round((t.X + t.W - bounds.X) * sx))
		r0 := int(math.Round((t.Y - bounds.Y) * sy))
		r1 := int(math.Round((t.Y + t.H - bounds.Y) * sy))
		if c1 > cols {
			c1 = cols
		}
		if r1 > rows {
			r1 = rows
		}
		if c1 <= c0 || r1 <= r0 {
			continue
		}
		out = append(out, GridCell{Index: t.Index, Col0: c0, Row0: r0, Col1: c1, Row1: r1})
	}
	return out
}
