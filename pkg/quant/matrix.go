package quant

import (
	"sort"
)

// Matrix holds one quantity per run and key. Zero means not observed.
type Matrix struct {
	Runs   []string
	Keys   []string
	Values [][]float64 // [run][key]
}

// NewMatrix lays out per-run quantities over the sorted union of keys.
func NewMatrix(runs []string, quantities []map[string]float64) *Matrix {
	keySet := make(map[string]bool)
	for _, q := range quantities {
		for k := range q {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := &Matrix{
		Runs:   append([]string(nil), runs...),
		Keys:   keys,
		Values: make([][]float64, len(runs)),
	}
	for r := range runs {
		row := make([]float64, len(keys))
		if r < len(quantities) {
			for i, k := range keys {
				row[i] = quantities[r][k]
			}
		}
		m.Values[r] = row
	}
	return m
}

// Columns returns the run rows restricted to keys, in the given order. Keys
// absent from the matrix read as zero.
func (m *Matrix) Columns(keys []string) [][]float64 {
	index := make(map[string]int, len(m.Keys))
	for i, k := range m.Keys {
		index[k] = i
	}
	out := make([][]float64, len(m.Runs))
	for r := range m.Runs {
		row := make([]float64, len(keys))
		for i, k := range keys {
			if j, ok := index[k]; ok {
				row[i] = m.Values[r][j]
			}
		}
		out[r] = row
	}
	return out
}
