package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"blinkos/eyestate"
	"blinkos/intent"
)

// numTerms is the number of monomials in the per-axis quadratic:
// 1, u, v, u^2, uv, v^2.
const numTerms = 6

// minSpread is the smallest standard deviation of observed gaze along either
// axis that still describes a usable calibration.
const minSpread = 1e-4

// Model maps a gaze vector to normalized screen space. Inputs are centered
// and scaled by the sample statistics before the polynomial is evaluated.
type Model struct {
	MeanX float64           `msgpack:"mx"`
	MeanY float64           `msgpack:"my"`
	StdX  float64           `msgpack:"sx"`
	StdY  float64           `msgpack:"sy"`
	CX    [numTerms]float64 `msgpack:"cx"`
	CY    [numTerms]float64 `msgpack:"cy"`
}

func terms(u, v float64) [numTerms]float64 {
	return [numTerms]float64{1, u, v, u * u, u * v, v * v}
}

// Eval returns the unclamped normalized screen position for g.
func (m Model) Eval(g eyestate.Gaze) intent.Point {
	u := (g.X - m.MeanX) / m.StdX
	v := (g.Y - m.MeanY) / m.StdY
	t := terms(u, v)
	var x, y float64
	for i := range t {
		x += m.CX[i] * t[i]
		y += m.CY[i] * t[i]
	}
	return intent.Point{X: x, Y: y}
}

func (m Model) valid() bool {
	if !(m.StdX > 0) || !(m.StdY > 0) {
		return false
	}
	for _, v := range [...]float64{m.MeanX, m.MeanY, m.StdX, m.StdY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for i := range m.CX {
		if math.IsNaN(m.CX[i]) || math.IsInf(m.CX[i], 0) || math.IsNaN(m.CY[i]) || math.IsInf(m.CY[i], 0) {
			return false
		}
	}
	return true
}

// fit solves the least-squares quadratic from observed gaze to normalized
// targets. It fails with ErrFitDegenerate when the observations have no
// spread or the design matrix is too ill-conditioned to trust.
func fit(obs []eyestate.Gaze, targets []intent.Point, maxCond float64) (Model, float64, error) {
	n := len(obs)
	var m Model
	for _, g := range obs {
		m.MeanX += g.X
		m.MeanY += g.Y
	}
	m.MeanX /= float64(n)
	m.MeanY /= float64(n)
	for _, g := range obs {
		m.StdX += (g.X - m.MeanX) * (g.X - m.MeanX)
		m.StdY += (g.Y - m.MeanY) * (g.Y - m.MeanY)
	}
	m.StdX = math.Sqrt(m.StdX / float64(n))
	m.StdY = math.Sqrt(m.StdY / float64(n))
	if m.StdX < minSpread || m.StdY < minSpread {
		return Model{}, 0, fmt.Errorf("%w: gaze spread %.2g x %.2g", ErrFitDegenerate, m.StdX, m.StdY)
	}

	a := mat.NewDense(n, numTerms, nil)
	bx := mat.NewVecDense(n, nil)
	by := mat.NewVecDense(n, nil)
	for i, g := range obs {
		t := terms((g.X-m.MeanX)/m.StdX, (g.Y-m.MeanY)/m.StdY)
		a.SetRow(i, t[:])
		bx.SetVec(i, targets[i].X)
		by.SetVec(i, targets[i].Y)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return Model{}, 0, fmt.Errorf("%w: svd did not converge", ErrFitDegenerate)
	}
	cond := svd.Cond()
	if math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCond {
		return Model{}, cond, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrFitDegenerate, cond, maxCond)
	}

	var cx, cy mat.VecDense
	if err := cx.SolveVec(a, bx); err != nil {
		return Model{}, cond, fmt.Errorf("%w: %v", ErrFitDegenerate, err)
	}
	if err := cy.SolveVec(a, by); err != nil {
		return Model{}, cond, fmt.Errorf("%w: %v", ErrFitDegenerate, err)
	}
	for i := 0; i < numTerms; i++ {
		m.CX[i] = cx.AtVec(i)
		m.CY[i] = cy.AtVec(i)
	}
	if !m.valid() {
		return Model{}, cond, fmt.Errorf("%w: non-finite coefficients", ErrFitDegenerate)
	}
	return m, cond, nil
}

// rmsPixels is the root-mean-square distance between each fitted point and
// its target on a w x h screen.
func rmsPixels(m Model, obs []eyestate.Gaze, targets []intent.Point, w, h int) float64 {
	var sum float64
	for i, g := range obs {
		p := toPixels(m.Eval(g), w, h)
		t := toPixels(targets[i], w, h)
		dx, dy := p.X-t.X, p.Y-t.Y
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(obs)))
}
