// Package filter provides peak filtering applied to library spectra before matching
package filter

import (
	"sort"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// DefaultTopN is the number of library peaks kept per entry unless configured otherwise.
const DefaultTopN = 10

// Config holds filtering configuration
type Config struct {
	TopN            int      // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64  // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []string // Keep only specified ion types (nil = all)
}

// Apply applies all configured filters to a spectrum. Zero-intensity peaks
// are always dropped, and peaks are left sorted by m/z.
func (c *Config) Apply(spec *core.Spectrum) {
	RemoveZeroIntensityPeaks(spec)

	// Filter by ion type first
	if len(c.IonTypes) > 0 {
		c.filterByIonType(spec)
	}
	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		spec.Peaks = TopN(spec.Peaks, c.TopN)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()
}

// filterByIonType keeps only peaks matching specified ion types
func (c *Config) filterByIonType(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if matchesIonType(peak.Annotation, c.IonTypes) {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// matchesIonType checks if an annotation matches any of the allowed ion types
func matchesIonType(annotation string, ionTypes []string) bool {
	if annotation == "" {
		return false
	}
	for _, ionType := range ionTypes {
		// Match ion type at start of annotation (e.g., "y3", "b2^2")
		if strings.HasPrefix(annotation, ionType) {
			return true
		}
	}
	return false
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range spec.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	// Filter peaks
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// TopN returns the n most intense peaks. Peaks of equal intensity keep their
// input order, so the result is deterministic. The input slice is not modified.
func TopN(peaks []core.Peak, n int) []core.Peak {
	// Create a copy and sort by intensity descending
	out := make([]core.Peak, len(peaks))
	copy(out, peaks)
	if len(out) <= n {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Intensity > out[j].Intensity
	})

	// Keep only top N
	return out[:n]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
