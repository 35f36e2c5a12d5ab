// Package fdr applies target-decoy false discovery rate control to ranked
// identifications at the spectrum, peptide and protein level.
package fdr

import (
	"errors"
	"sort"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// DefaultThreshold is the conventional 1% FDR.
const DefaultThreshold = 0.01

// ErrTopHitDecoy means the best-scoring entity was a decoy, so no FDR can be
// estimated for the run.
var ErrTopHitDecoy = errors.New("none of the library peptides were identified in the query spectra (highest score was a decoy)")

// Rates returns the cumulative decoy fraction at every rank of a list
// sorted best first.
func Rates(decoys []bool) []float64 {
	rates := make([]float64, len(decoys))
	n := 0
	for i, d := range decoys {
		if d {
			n++
		}
		rates[i] = float64(n) / float64(i+1)
	}
	return rates
}

// Cutoff returns the length of the longest prefix whose FDR is at or below
// threshold. A list without decoys passes whole.
func Cutoff(decoys []bool, threshold float64) (int, error) {
	if len(decoys) == 0 {
		return 0, nil
	}
	if decoys[0] {
		return 0, ErrTopHitDecoy
	}
	cut := 0
	for i, r := range Rates(decoys) {
		if r <= threshold {
			cut = i + 1
		}
	}
	return cut, nil
}

// Filter truncates items, sorted best first, at the FDR cutoff.
func Filter[T any](items []T, isDecoy func(T) bool, threshold float64) ([]T, error) {
	decoys := make([]bool, len(items))
	for i, it := range items {
		decoys[i] = isDecoy(it)
	}
	n, err := Cutoff(decoys, threshold)
	if err != nil {
		return nil, err
	}
	return items[:n], nil
}

func isDecoy(id *core.Identification) bool { return id.IsDecoy() }

// sortByScore orders identifications by MaCC descending. Ties keep their
// input order.
func sortByScore(ids []*core.Identification) {
	sort.SliceStable(ids, func(i, j int) bool {
		return ids[i].MaCC > ids[j].MaCC
	})
}

// bestBy keeps the highest-MaCC identification for each key, ranked best
// first. The first row seen wins a tie.
func bestBy(ids []*core.Identification, key func(*core.Identification) string) []*core.Identification {
	ranked := make([]*core.Identification, len(ids))
	copy(ranked, ids)
	sortByScore(ranked)

	seen := make(map[string]bool, len(ranked))
	out := ranked[:0]
	for _, id := range ranked {
		k := key(id)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, id)
	}
	return out
}

// Spectral keeps the top match of every query scan and applies the FDR
// cutoff to them.
func Spectral(ids []*core.Identification, threshold float64) ([]*core.Identification, error) {
	best := bestBy(ids, func(id *core.Identification) string {
		return id.FileName + "\x00" + id.Scan
	})
	return Filter(best, isDecoy, threshold)
}

// Peptide keeps the best match of every peptide and applies the FDR cutoff
// to them.
func Peptide(ids []*core.Identification, threshold float64) ([]*core.Identification, error) {
	best := bestBy(ids, func(id *core.Identification) string {
		return id.Peptide
	})
	return Filter(best, isDecoy, threshold)
}
