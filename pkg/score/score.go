// Package score ranks library/query spectrum pairs by the cosine similarity
// of their matched peaks.
package score

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/DIAKey/pkg/match"
)

// Pair is the score of one library entry against one query spectrum.
type Pair struct {
	LibraryIndex int
	QueryIndex   int
	Cosine       float64
	MaCC         float64
	Shared       int
}

// MaCC combines cosine similarity with the number of shared peaks.
func MaCC(cosine float64, shared int) float64 {
	return math.Pow(float64(shared), 0.2) * cosine
}

type pairKey struct{ lib, query int }

type accumulator struct {
	dot, libNorm, queryNorm float64
	n                       int
}

// Score groups matches by (library, query) pair and scores each group.
// Groups where either side has zero intensity are dropped. The result is
// sorted by MaCC descending, then library index, then query index.
func Score(matches []match.Match) []Pair {
	if len(matches) == 0 {
		return nil
	}

	acc := make(map[pairKey]*accumulator)
	for _, m := range matches {
		k := pairKey{m.LibraryIndex, m.QueryIndex}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{}
			acc[k] = a
		}
		a.dot += m.LibraryIntensity * m.QueryIntensity
		a.libNorm += m.LibraryIntensity * m.LibraryIntensity
		a.queryNorm += m.QueryIntensity * m.QueryIntensity
		a.n++
	}

	pairs := make([]Pair, 0, len(acc))
	for k, a := range acc {
		if a.libNorm == 0 || a.queryNorm == 0 {
			continue
		}
		cos := cosine(a.dot, a.libNorm, a.queryNorm)
		pairs = append(pairs, Pair{
			LibraryIndex: k.lib,
			QueryIndex:   k.query,
			Cosine:       cos,
			MaCC:         MaCC(cos, a.n),
			Shared:       a.n,
		})
	}
	Sort(pairs)
	return pairs
}

// cosine normalizes a dot product by the squared norms of both vectors.
// Rounding can push the quotient past ±1, so it is clamped.
func cosine(dot, libNorm, queryNorm float64) float64 {
	// sqrt of the product is exact for identical vectors, unlike the
	// product of the two square roots
	denom := math.Sqrt(libNorm * queryNorm)
	if math.IsInf(denom, 0) {
		denom = math.Sqrt(libNorm) * math.Sqrt(queryNorm)
	}
	return math.Max(-1, math.Min(1, dot/denom))
}

// Sort orders pairs by MaCC descending with index tie-breaks.
func Sort(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.MaCC != b.MaCC {
			return a.MaCC > b.MaCC
		}
		if a.LibraryIndex != b.LibraryIndex {
			return a.LibraryIndex < b.LibraryIndex
		}
		return a.QueryIndex < b.QueryIndex
	})
}

// Filter keeps pairs with at least minShared shared peaks.
func Filter(pairs []Pair, minShared int) []Pair {
	out := pairs[:0:0]
	for _, p := range pairs {
		if p.Shared >= minShared {
			out = append(out, p)
		}
	}
	return out
}
