// Package core provides the intermediate representation (IR) models and validation logic
// shared by the DIAKey library loaders, the identification pipeline and the reports.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum represents a single reference spectrum as delivered by a library loader.
type Spectrum struct {
	// Required fields
	Peptide     string  // Library key peptide (modified sequence as written by the source)
	Charge      int     // Precursor charge state
	PrecursorMZ float64 // Precursor m/z
	Peaks       []Peak  // Fragment peaks

	// Optional metadata
	Identifier    string // Transition group id, title or name
	ProteinName   string // May encode a protein group as "N/protA/protB"
	Sequence      string // Stripped sequence, when the source provides one
	Modifications []Modification
	Decoy         bool // Set by sources that flag decoys outside the protein name

	// Internal tracking
	SourceFile   string
	SourceFormat string // table, msp, sptxt, mgf, sqlite
}

// Peak represents a single m/z, intensity pair with optional annotation.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// IsDecoyName reports whether a protein name or title marks a decoy entry.
func IsDecoyName(name string) bool {
	return strings.Contains(strings.ToLower(name), "decoy")
}

// IsDecoy reports whether the spectrum is a decoy library entry.
func (s *Spectrum) IsDecoy() bool {
	return s.Decoy || IsDecoyName(s.ProteinName)
}

// Validate checks that a spectrum carries everything the matcher needs.
// Every problem found is reported, not only the first.
func (s *Spectrum) Validate() error {
	var errs []string

	// Required fields
	if s.Peptide == "" {
		errs = append(errs, "peptide is required")
	}
	if s.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if s.PrecursorMZ <= 0 || math.IsNaN(s.PrecursorMZ) || math.IsInf(s.PrecursorMZ, 0) {
		errs = append(errs, "precursor m/z must be positive")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	// Validate peaks
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) || peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) || peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
	}

	// Check if peaks are sorted
	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   s.Name(),
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	return PeaksSorted(s.Peaks)
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	SortPeaks(s.Peaks)
}

// ModString returns a string representation of modifications in format "mass@pos;mass@pos;..."
func (s *Spectrum) ModString() string {
	if len(s.Modifications) == 0 {
		return ""
	}

	var parts []string
	for _, mod := range s.Modifications {
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

// Name returns the spectrum name in format "Peptide/Charge"
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%s/%d", s.Peptide, s.Charge)
}

// PeaksSorted reports whether peaks are in ascending m/z order.
func PeaksSorted(peaks []Peak) bool {
	for i := 1; i < len(peaks); i++ {
		if peaks[i].MZ < peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z, breaking ties by intensity.
func SortPeaks(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].MZ != peaks[j].MZ {
			return peaks[i].MZ < peaks[j].MZ
		}
		return peaks[i].Intensity < peaks[j].Intensity
	})
}
