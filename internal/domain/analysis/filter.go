package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// MedianFilter replaces each value by the median of a centered window of
// size k. Windows are clipped at the edges. Input shorter than k, or k < 3,
// is returned unmodified.
func MedianFilter(x []float64, k int) []float64 {
	n := len(x)
	out := slices.Clone(x)
	if k < 3 || n < k {
		return out
	}
	h := k / 2
	win := make([]float64, 0, k)
	for i := range x {
		lo, hi := max(0, i-h), min(n, i+h+1)
		win = append(win[:0], x[lo:hi]...)
		slices.Sort(win)
		m := len(win)
		if m%2 == 1 {
			out[i] = win[m/2]
		} else {
			out[i] = 0.5 * (win[m/2-1] + win[m/2])
		}
	}
	return out
}

// SavitzkyGolay smooths x with a least-squares polynomial of the given order
// fitted over a centered window. The first and last half-windows are
// evaluated from the polynomial fitted to the first and last full window.
// Input shorter than the window, an order not below the window, or a
// singular design is returned unmodified.
func SavitzkyGolay(x []float64, window, order int) []float64 {
	n := len(x)
	out := slices.Clone(x)
	if window < 3 || window%2 == 0 || order < 0 || order >= window || n < window {
		return out
	}

	proj, ok := savgolProjection(window, order)
	if !ok {
		return out
	}
	h := window / 2

	// coefficients for evaluating the window fit at offset t from its center
	coeffs := func(t float64) []float64 {
		c := make([]float64, window)
		for j := range window {
			tk := 1.0
			for k := 0; k <= order; k++ {
				c[j] += tk * proj.At(k, j)
				tk *= t
			}
		}
		return c
	}
	apply := func(c []float64, start int) float64 {
		var v float64
		for j, cj := range c {
			v += cj * x[start+j]
		}
		return v
	}

	center := coeffs(0)
	for i := h; i < n-h; i++ {
		out[i] = apply(center, i-h)
	}
	for i := range h {
		out[i] = apply(coeffs(float64(i-h)), 0)
		out[n-1-i] = apply(coeffs(float64(h-i)), n-window)
	}
	return out
}

// savgolProjection returns (AᵀA)⁻¹Aᵀ for the Vandermonde design A of a
// centered window, so that row k maps window samples to the k-th coefficient.
func savgolProjection(window, order int) (*mat.Dense, bool) {
	h := window / 2
	a := mat.NewDense(window, order+1, nil)
	for j := range window {
		v := 1.0
		for k := 0; k <= order; k++ {
			a.Set(j, k, v)
			v *= float64(j - h)
		}
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var proj mat.Dense
	if err := proj.Solve(&ata, a.T()); err != nil {
		return nil, false
	}
	return &proj, true
}

// effectiveKernel clamps k to the largest odd value not above n/4.
func effectiveKernel(k, n int) int {
	limit := n / 4
	if limit%2 == 0 {
		limit--
	}
	return min(k, limit)
}

// Smooth applies the median stage followed by the polynomial stage with
// kernels clamped to the series length.
func (p Params) Smooth(x []float64) []float64 {
	n := len(x)
	out := slices.Clone(x)
	if k := effectiveKernel(p.MedianKernel, n); k >= 3 {
		out = MedianFilter(out, k)
	}
	if w := effectiveKernel(p.SavgolWindow, n); w >= 3 && w > p.SavgolOrder {
		out = SavitzkyGolay(out, w, p.SavgolOrder)
	}
	return out
}

// gradient is the numeric first derivative with unit spacing: central
// differences inside, one-sided at the ends.
func gradient(y []float64) []float64 {
	n := len(y)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = y[1] - y[0]
	g[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / 2
	}
	return g
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
