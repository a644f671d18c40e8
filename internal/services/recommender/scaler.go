package recommender

import "math"

// MinMaxScaler maps each column onto [0, 1] using the bounds seen in Fit.
// Values outside those bounds are not clipped.
type MinMaxScaler struct {
	Min   []float64
	Range []float64
}

func (s *MinMaxScaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	s.Min = make([]float64, cols)
	s.Range = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range X {
			lo = math.Min(lo, X[i][j])
			hi = math.Max(hi, X[i][j])
		}
		s.Min[j] = lo
		s.Range[j] = hi - lo
		if s.Range[j] == 0 {
			s.Range[j] = 1
		}
	}
}

func (s *MinMaxScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Min[j]) / s.Range[j]
	}
	return out
}

// Cosine returns the cosine similarity of a and b, 0 when either is the zero vector.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
