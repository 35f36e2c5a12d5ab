// Package quant turns FDR-filtered identifications into per-run peptide and
// protein quantities and aligns them across runs.
package quant

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/fdr"
)

// Method selects how protein quantities are derived.
type Method string

const (
	// MethodAverage reports the median peptide ion count of each protein per run.
	MethodAverage Method = "average"
	// MethodMaxLFQ aligns each protein's peptides across runs with MaxLFQ.
	MethodMaxLFQ Method = "maxlfq"
)

// ParseMethod validates a quantification method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case MethodAverage, MethodMaxLFQ:
		return m, nil
	case "":
		return MethodAverage, nil
	}
	return "", fmt.Errorf("unknown quantification method %q, expected average or maxlfq", s)
}

// median returns the classical median, averaging the middle pair for even
// lengths. xs is reordered.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// PeptideIonCounts maps each peptide to its ion count. Rows are expected
// best first, and the first row of a peptide wins.
func PeptideIonCounts(ids []*core.Identification) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if _, ok := out[id.Peptide]; ok {
			continue
		}
		out[id.Peptide] = id.IonCount
	}
	return out
}

// ProteinIonCounts rolls peptide ion counts up to proteins. Every member of a
// leading protein group receives the group's peptides, and a protein's count
// is the median of them.
func ProteinIonCounts(ids []*core.Identification) (map[string]float64, error) {
	counts := make(map[string][]float64)
	for _, id := range ids {
		group := id.LeadingProtein
		if group == "" {
			group = id.Protein
		}
		members, err := fdr.ParseProteinGroup(group)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			counts[m] = append(counts[m], id.IonCount)
		}
	}
	out := make(map[string]float64, len(counts))
	for p, c := range counts {
		out[p] = median(c)
	}
	return out, nil
}

// ProteinPeptides maps each leading protein to the peptides assigned to it.
func ProteinPeptides(ids []*core.Identification) (map[string][]string, error) {
	seen := make(map[string]map[string]bool)
	out := make(map[string][]string)
	for _, id := range ids {
		group := id.LeadingProtein
		if group == "" {
			group = id.Protein
		}
		members, err := fdr.ParseProteinGroup(group)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if seen[m] == nil {
				seen[m] = make(map[string]bool)
			}
			if seen[m][id.Peptide] {
				continue
			}
			seen[m][id.Peptide] = true
			out[m] = append(out[m], id.Peptide)
		}
	}
	for _, peps := range out {
		sort.Strings(peps)
	}
	return out, nil
}

// PeptideQuantities builds the runs × peptides ion count matrix.
func PeptideQuantities(runs []string, perRun [][]*core.Identification) *Matrix {
	counts := make([]map[string]float64, len(perRun))
	for i, ids := range perRun {
		counts[i] = PeptideIonCounts(ids)
	}
	return NewMatrix(runs, counts)
}

// ProteinQuantities builds the runs × proteins matrix from each run's
// protein-level identifications. With MaxLFQ every protein is aligned
// across runs on its peptides' ion counts and runs that cannot be placed on
// the common scale report zero.
func ProteinQuantities(runs []string, perRun [][]*core.Identification, method Method, minShared int) (*Matrix, error) {
	switch method {
	case MethodAverage, "":
		counts := make([]map[string]float64, len(perRun))
		for i, ids := range perRun {
			c, err := ProteinIonCounts(ids)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", runs[i], err)
			}
			counts[i] = c
		}
		return NewMatrix(runs, counts), nil
	case MethodMaxLFQ:
		return maxLFQProteins(runs, perRun, minShared)
	}
	return nil, fmt.Errorf("unknown quantification method %q", method)
}

func maxLFQProteins(runs []string, perRun [][]*core.Identification, minShared int) (*Matrix, error) {
	peptides := PeptideQuantities(runs, perRun)

	var all []*core.Identification
	for _, ids := range perRun {
		all = append(all, ids...)
	}
	proteinPeptides, err := ProteinPeptides(all)
	if err != nil {
		return nil, err
	}

	quantities := make([]map[string]float64, len(runs))
	for i := range quantities {
		quantities[i] = make(map[string]float64)
	}
	for protein, peps := range proteinPeptides {
		logs, ok := MaxLFQ(peptides.Columns(peps), minShared)
		for r := range runs {
			if ok[r] {
				quantities[r][protein] = math.Exp(logs[r])
			} else {
				quantities[r][protein] = 0
			}
		}
	}
	return NewMatrix(runs, quantities), nil
}
