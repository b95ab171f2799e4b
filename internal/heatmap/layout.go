package heatmap

import (
	"math"

	"github.com/sectorpulse/sectorpulse/internal/model"
)

// Rect is one positioned tile in the heatmap. All coordinates are
// percentages of the container; derived per request and never persisted.
type Rect struct {
	Category model.Category `json:"category"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Width    float64        `json:"width"`
	Height   float64        `json:"height"`
	Row      int            `json:"row"`
	Color    string         `json:"color"`
	FontSize int            `json:"font_size"`
}

// LayoutConfig tunes the row-packing heuristic. DensityFactor controls how
// aggressively proportional widths fill a row before it closes, and
// MinRowHeightPct floors the uniform row height. Both are empirical knobs,
// not derived quantities.
type LayoutConfig struct {
	DensityFactor   float64
	MinRowHeightPct float64
}

// DefaultLayoutConfig returns the tuning that renders well for 20-60
// sectors.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		DensityFactor:   3.0,
		MinRowHeightPct: 15.0,
	}
}

// Layout packs categories into rows of proportional tiles.
//
// The procedure is a row-based approximation of a squarified treemap:
// a uniform row height is estimated from the category count, rows are
// filled greedily using density-scaled proportional widths, each closed
// row is renormalized so its widths sum to exactly 100, and if the rows
// overrun the container every y/height is rescaled by 100/totalHeight.
// Every input category produces exactly one tile; a single oversized
// category can still claim a whole row, with the final rescale absorbing
// the overflow rather than bounding aspect ratios.
func Layout(cats []model.Category, cfg LayoutConfig) []Rect {
	n := len(cats)
	if n == 0 {
		return []Rect{}
	}
	if cfg.DensityFactor <= 0 {
		cfg.DensityFactor = 3.0
	}
	if cfg.MinRowHeightPct <= 0 {
		cfg.MinRowHeightPct = 15.0
	}

	total := 0.0
	for _, c := range cats {
		total += c.MarketCap
	}

	// Degenerate universe: give every category equal weight so the
	// packing still emits n tiles.
	weight := func(c model.Category) float64 {
		if total <= 0 {
			return 1.0 / float64(n)
		}
		return c.MarketCap / total
	}

	rowHeight := math.Max(100.0/math.Ceil(math.Sqrt(float64(n))), cfg.MinRowHeightPct)

	rects := make([]Rect, 0, n)
	currentY := 0.0
	row := 0

	i := 0
	for i < n {
		// Fill the row greedily. The first item is always admitted so an
		// oversized category cannot stall the packing.
		rowStart := i
		rowWidth := 0.0
		for i < n {
			w := weight(cats[i]) * 100 * cfg.DensityFactor
			if i > rowStart && rowWidth+w > 100 {
				break
			}
			rowWidth += w
			i++
		}

		rowWeight := 0.0
		for j := rowStart; j < i; j++ {
			rowWeight += weight(cats[j])
		}

		x := 0.0
		for j := rowStart; j < i; j++ {
			w := 100.0 / float64(i-rowStart)
			if rowWeight > 0 {
				w = weight(cats[j]) / rowWeight * 100
			}
			minDim := math.Min(w, rowHeight)
			rects = append(rects, Rect{
				Category: cats[j],
				X:        x,
				Y:        currentY,
				Width:    w,
				Height:   rowHeight,
				Row:      row,
				Color:    ColorFor(cats[j].MarketCapChange24h),
				FontSize: FontSizeFor(minDim),
			})
			x += w
		}

		currentY += rowHeight
		row++
	}

	// Rows overran the container: squeeze everything back into 100%.
	if currentY > 100 {
		scale := 100 / currentY
		for k := range rects {
			rects[k].Y *= scale
			rects[k].Height *= scale
			rects[k].FontSize = FontSizeFor(math.Min(rects[k].Width, rects[k].Height))
		}
	}

	return rects
}
