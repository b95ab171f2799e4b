package heatmap

// ColorFor maps a 24h percent change onto a fixed ten-bucket palette.
// Green buckets include their lower bound, so exactly 0 lands on the
// dimmest green and exactly +10 on the strongest. Red buckets exclude
// their lower bound, so exactly -10 lands on the strongest red.
func ColorFor(changePct float64) string {
	switch {
	case changePct >= 10:
		return "rgb(22, 163, 74)"
	case changePct >= 5:
		return "rgb(34, 197, 94)"
	case changePct >= 2:
		return "rgb(74, 222, 128)"
	case changePct > 0:
		return "rgb(134, 239, 172)"
	case changePct >= 0:
		return "rgb(187, 247, 208)"
	case changePct > -2:
		return "rgb(254, 202, 202)"
	case changePct > -5:
		return "rgb(252, 165, 165)"
	case changePct > -7.5:
		return "rgb(248, 113, 113)"
	case changePct > -10:
		return "rgb(239, 68, 68)"
	default:
		return "rgb(153, 27, 27)"
	}
}

// FontSizeFor picks a label size in pixels from a tile's smaller dimension
// (percent units). Zero means the tile is too small to label.
func FontSizeFor(minDimPct float64) int {
	switch {
	case minDimPct >= 20:
		return 18
	case minDimPct >= 12:
		return 14
	case minDimPct >= 8:
		return 12
	case minDimPct >= 5:
		return 10
	default:
		return 0
	}
}
