package calibration

import "blinkos/intent"

// NumPoints is the size of the 3x3 reference grid.
const NumPoints = 9

// GridNorm returns reference point idx in normalized screen space, row-major
// from the top-left corner. margin keeps the outer ring off the bezel.
func GridNorm(idx int, margin float64) intent.Point {
	steps := [3]float64{margin, 0.5, 1 - margin}
	return intent.Point{X: steps[idx%3], Y: steps[idx/3]}
}

// GridTarget returns reference point idx in pixels for a w x h screen.
func GridTarget(idx int, margin float64, w, h int) intent.Point {
	n := GridNorm(idx, margin)
	return toPixels(n, w, h)
}

func toPixels(n intent.Point, w, h int) intent.Point {
	return intent.Point{X: n.X * float64(w-1), Y: n.Y * float64(h-1)}
}
