package quant

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// MaxLFQ estimates one log quantity per run from a runs × features matrix of
// linear intensities, where zero marks a missing value. For every pair of
// runs sharing at least minShared features, the median log ratio over the
// shared features is taken as their observed difference. Each connected
// group of runs is then solved by least squares, with the mean of the
// solution pinned to the mean observed log intensity of the group.
//
// ok[r] is false, and logs[r] zero, for runs without any usable ratio.
func MaxLFQ(intensities [][]float64, minShared int) (logs []float64, ok []bool) {
	if minShared < 1 {
		minShared = 1
	}
	n := len(intensities)
	logs = make([]float64, n)
	ok = make([]bool, n)

	// Log-transform, marking missing values with NaN
	logged := make([][]float64, n)
	for r, row := range intensities {
		logged[r] = make([]float64, len(row))
		for i, v := range row {
			if v > 0 {
				logged[r][i] = math.Log(v)
			} else {
				logged[r][i] = math.NaN()
			}
		}
	}

	// Pairwise median log ratios over shared features
	ratio := make([][]float64, n)
	linked := make([][]bool, n)
	for i := range ratio {
		ratio[i] = make([]float64, n)
		linked[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var diffs []float64
			for k := 0; k < len(logged[i]) && k < len(logged[j]); k++ {
				a, b := logged[i][k], logged[j][k]
				if math.IsNaN(a) || math.IsNaN(b) {
					continue
				}
				diffs = append(diffs, a-b)
			}
			if len(diffs) < minShared {
				continue
			}
			r := median(diffs)
			ratio[i][j], ratio[j][i] = r, -r
			linked[i][j], linked[j][i] = true, true
		}
	}

	// Solve each connected group of runs on its own scale
	for _, comp := range components(linked) {
		if len(comp) < 2 {
			continue
		}
		x, err := solveComponent(comp, ratio, linked, logged)
		if err != nil {
			continue
		}
		for i, r := range comp {
			logs[r] = x[i]
			ok[r] = true
		}
	}
	return logs, ok
}

// components returns the connected groups of runs, each in ascending order.
func components(linked [][]bool) [][]int {
	n := len(linked)
	seen := make([]bool, n)
	var out [][]int
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		seen[start] = true
		// Breadth-first walk from start
		comp := []int{start}
		for q := 0; q < len(comp); q++ {
			for j := 0; j < n; j++ {
				if linked[comp[q]][j] && !seen[j] {
					seen[j] = true
					comp = append(comp, j)
				}
			}
		}
		sort.Ints(comp)
		out = append(out, comp)
	}
	return out
}

// solveComponent minimizes the squared error between solved differences
// and observed ratios over the edges of comp. The normal equations form a
// graph Laplacian, made non-singular by a Lagrange row fixing the sum.
func solveComponent(comp []int, ratio [][]float64, linked [][]bool, logged [][]float64) ([]float64, error) {
	m := len(comp)
	a := mat.NewDense(m+1, m+1, nil)
	b := mat.NewVecDense(m+1, nil)

	// Laplacian rows: x_i - x_j should equal ratio[i][j] for every edge
	for p, i := range comp {
		for q, j := range comp {
			if p == q || !linked[i][j] {
				continue
			}
			a.Set(p, p, a.At(p, p)+1)
			a.Set(p, q, a.At(p, q)-1)
			b.SetVec(p, b.AtVec(p)+ratio[i][j])
		}
	}

	// Anchor the solution at the group's mean observed log intensity
	var sum float64
	var count int
	for _, r := range comp {
		for _, v := range logged[r] {
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
	}
	for p := 0; p < m; p++ {
		a.Set(p, m, 1)
		a.Set(m, p, 1)
	}
	b.SetVec(m, float64(m)*sum/float64(count))

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, m)
	for p := range out {
		out[p] = x.AtVec(p)
	}
	return out, nil
}
