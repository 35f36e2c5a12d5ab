// Package match pairs library fragment peaks with query peaks within a ppm tolerance.
package match

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/library"
)

// Match is one (library peak, query peak) pair within tolerance.
type Match struct {
	LibraryIndex     int
	QueryIndex       int
	LibraryMZ        float64
	LibraryIntensity float64
	QueryMZ          float64
	QueryIntensity   float64
	PPM              float64
}

// PPM returns the relative mass error of queryMZ against libraryMZ in parts per million.
func PPM(libraryMZ, queryMZ float64) float64 {
	return (queryMZ - libraryMZ) / libraryMZ * 1e6
}

// WindowMode selects which library entries are candidates for a query scan.
type WindowMode int

const (
	// Isolation restricts candidates to entries whose precursor falls in
	// the scan's isolation window.
	Isolation WindowMode = iota
	// DIAWide makes every library entry a candidate.
	DIAWide
)

func (m WindowMode) String() string {
	switch m {
	case Isolation:
		return "isolation"
	case DIAWide:
		return "dia-wide"
	}
	return fmt.Sprintf("WindowMode(%d)", int(m))
}

// ParseWindowMode parses "isolation" or "dia-wide".
func ParseWindowMode(s string) (WindowMode, error) {
	switch strings.ToLower(s) {
	case "isolation", "":
		return Isolation, nil
	case "dia-wide", "diawide", "wide":
		return DIAWide, nil
	}
	return 0, fmt.Errorf("unknown precursor window mode %q, expected isolation or dia-wide", s)
}

// Options configures the matcher.
type Options struct {
	Tolerance float64 // ppm
	Window    WindowMode
}

// Candidates returns the range [start, end) of library indices compared
// against q. A scan without an isolation width falls back to the ppm
// tolerance around its precursor.
func Candidates(lib *library.Library, q *core.QuerySpectrum, opts Options) (start, end int) {
	if opts.Window == DIAWide {
		return 0, lib.Len()
	}
	lo, hi := q.IsolationWindow()
	if q.WindowWidth <= 0 {
		delta := q.PrecursorMZ * opts.Tolerance * 1e-6
		lo, hi = q.PrecursorMZ-delta, q.PrecursorMZ+delta
	}
	return lib.Range(lo, hi)
}

// Spectrum returns every library/query peak pair within tolerance for the
// candidate entries of q. The query peaks must be sorted by m/z. Matches are
// ordered by library index, library peak, then query peak. One peak may take
// part in several matches.
func Spectrum(lib *library.Library, q *core.QuerySpectrum, queryIndex int, opts Options) []Match {
	start, end := Candidates(lib, q, opts)
	if start == end || len(q.Peaks) == 0 {
		return nil
	}

	var matches []Match
	for i := start; i < end; i++ {
		entry := lib.Entry(i)
		for _, lp := range entry.Peaks {
			// Binary search for the first query peak inside the window
			delta := lp.MZ * opts.Tolerance * 1e-6
			first := sort.Search(len(q.Peaks), func(k int) bool {
				return q.Peaks[k].MZ >= lp.MZ-delta
			})
			for k := first; k < len(q.Peaks) && q.Peaks[k].MZ <= lp.MZ+delta; k++ {
				qp := q.Peaks[k]
				// The m/z window is approximate; the ppm check is exact
				ppm := PPM(lp.MZ, qp.MZ)
				if math.Abs(ppm) > opts.Tolerance {
					continue
				}
				matches = append(matches, Match{
					LibraryIndex:     entry.Index,
					QueryIndex:       queryIndex,
					LibraryMZ:        lp.MZ,
					LibraryIntensity: lp.Intensity,
					QueryMZ:          qp.MZ,
					QueryIntensity:   qp.Intensity,
					PPM:              ppm,
				})
			}
		}
	}
	return matches
}

// PPMs returns the ppm differences of matches.
func PPMs(matches []Match) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = m.PPM
	}
	return out
}
