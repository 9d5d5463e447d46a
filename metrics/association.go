package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PointBiserial is the Pearson correlation between a numeric x and a binary y,
// computed over rows where both are present. ok is false when fewer than three
// rows remain or either side is constant.
func PointBiserial(x, y []float64) (r float64, ok bool) {
	xs, ys := coPresent(x, y)
	if len(xs) <= 2 {
		return 0, false
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return 0, false
	}
	r = stat.Correlation(xs, ys, nil)
	return r, !math.IsNaN(r)
}

// MutualInformation computes the plug-in mutual information, in nats, between two
// discrete variables given as integer codes. Negative codes mark missing values
// and drop the row.
func MutualInformation(a, b []int) float64 {
	joint := make(map[[2]int]float64)
	pa := make(map[int]float64)
	pb := make(map[int]float64)
	n := 0.0
	for i := range a {
		if a[i] < 0 || b[i] < 0 {
			continue
		}
		joint[[2]int{a[i], b[i]}]++
		pa[a[i]]++
		pb[b[i]]++
		n++
	}
	if n == 0 {
		return 0
	}
	mi := 0.0
	for k, c := range joint {
		pxy := c / n
		mi += pxy * math.Log(pxy/((pa[k[0]]/n)*(pb[k[1]]/n)))
	}
	if mi < 0 {
		return 0
	}
	return mi
}

func coPresent(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
