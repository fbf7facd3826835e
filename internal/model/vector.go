package model

// Vector is a sparse feature vector. Indices are strictly increasing and
// every index is below Dim.
type Vector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// Dense expands the vector into a slice of length Dim.
func (v Vector) Dense() []float64 {
	out := make([]float64, v.Dim)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// NNZ reports the number of stored (non-zero) entries.
func (v Vector) NNZ() int {
	return len(v.Indices)
}

func (v Vector) dot(w []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		sum += w[idx] * v.Values[i]
	}
	return sum
}
