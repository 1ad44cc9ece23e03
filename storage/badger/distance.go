package badger

import "math"

// cosineDistance returns 1 - cos(a, b). Zero vectors are treated as
// maximally distant from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
