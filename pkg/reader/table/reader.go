// Package table reads transition-list spectral libraries (SpectraST, FragPipe
// and Prosit CSV/TSV exports) where every row is one fragment peak.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// Source identifies the tool that exported a table library.
type Source string

const (
	SpectraST Source = "spectrast"
	FragPipe  Source = "fragpipe"
	Prosit    Source = "prosit"
)

// ErrUnknownSource is returned when the header matches none of the known exports.
var ErrUnknownSource = errors.New("the library table file provided does not match spectrast, fragpipe, or prosit formats")

// columns maps the source-specific header names onto the fields of a library row.
type columns struct {
	PrecursorMZ     string
	Peptide         string
	PeakMZ          string
	PeakIntensity   string
	PrecursorCharge string
	Identifier      string
	ProteinName     string
}

func (c columns) names() []string {
	return []string{c.PrecursorMZ, c.Peptide, c.PeakMZ, c.PeakIntensity, c.PrecursorCharge, c.Identifier, c.ProteinName}
}

var sourceColumns = map[Source]columns{
	SpectraST: {
		PrecursorMZ:     "PrecursorMz",
		Peptide:         "FullUniModPeptideName",
		PeakMZ:          "ProductMz",
		PeakIntensity:   "LibraryIntensity",
		PrecursorCharge: "PrecursorCharge",
		Identifier:      "transition_group_id",
		ProteinName:     "ProteinName",
	},
	FragPipe: {
		PrecursorMZ:     "PrecursorMz",
		Peptide:         "ModifiedPeptideSequence",
		PeakMZ:          "ProductMz",
		PeakIntensity:   "LibraryIntensity",
		PrecursorCharge: "PrecursorCharge",
		Identifier:      "PeptideSequence",
		ProteinName:     "ProteinId",
	},
	Prosit: {
		PrecursorMZ:     "PrecursorMz",
		Peptide:         "ModifiedPeptide",
		PeakMZ:          "FragmentMz",
		PeakIntensity:   "RelativeIntensity",
		PrecursorCharge: "PrecursorCharge",
		Identifier:      "StrippedPeptide",
		ProteinName:     "FragmentLossType",
	},
}

// DetectSource determines the exporting tool from the header row.
func DetectSource(header []string) (Source, error) {
	joined := strings.Join(header, ",")
	switch {
	case strings.Contains(joined, "transition_group_id"):
		return SpectraST, nil
	case strings.Contains(joined, "ProteinId"):
		return FragPipe, nil
	case strings.Contains(joined, "RelativeIntensity"):
		return Prosit, nil
	}
	return "", ErrUnknownSource
}

// ReadFile reads a table library, using tabs as separator for .tsv files and
// commas otherwise.
func ReadFile(path string) ([]*core.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	defer f.Close()

	sep := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		sep = '\t'
	}
	specs, err := Read(f, sep)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		s.SourceFile = path
	}
	return specs, nil
}

type key struct {
	mz      float64
	peptide string
}

// Read parses a table library. Rows are grouped into one spectrum per
// (precursor m/z, peptide) pair; metadata comes from the first row of each
// group. Spectra are returned in key order.
func Read(r io.Reader, sep rune) ([]*core.Spectrum, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.ReuseRecord = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)

	// Detect the exporting tool from the header
	source, err := DetectSource(header)
	if err != nil {
		return nil, err
	}
	cols := sourceColumns[source]

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	// Report every missing column at once
	var missing []string
	for _, name := range cols.names() {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &core.ValidationError{
			Field:   "columns",
			Message: fmt.Sprintf("table library file is missing expected column(s). Missing values: [%s]", strings.Join(missing, ", ")),
		}
	}

	groups := make(map[key]*core.Spectrum)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading library table: %w", err)
		}
		line, _ := cr.FieldPos(0)

		field := func(name string) string {
			return strings.TrimSpace(record[index[name]])
		}

		precursorMZ, err := strconv.ParseFloat(field(cols.PrecursorMZ), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, cols.PrecursorMZ, err)
		}
		peakMZ, err := strconv.ParseFloat(field(cols.PeakMZ), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, cols.PeakMZ, err)
		}
		intensity, err := strconv.ParseFloat(field(cols.PeakIntensity), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, cols.PeakIntensity, err)
		}

		// Group rows by precursor; the first row of a group sets its metadata
		k := key{mz: precursorMZ, peptide: field(cols.Peptide)}
		spec, ok := groups[k]
		if !ok {
			charge, err := strconv.ParseFloat(field(cols.PrecursorCharge), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, cols.PrecursorCharge, err)
			}
			spec = &core.Spectrum{
				Peptide:      k.peptide,
				Sequence:     core.StripSequence(k.peptide),
				Charge:       int(charge),
				PrecursorMZ:  precursorMZ,
				Identifier:   field(cols.Identifier),
				ProteinName:  field(cols.ProteinName),
				SourceFormat: "table",
			}
			groups[k] = spec
		}
		spec.Peaks = append(spec.Peaks, core.Peak{MZ: peakMZ, Intensity: intensity})
	}

	// Return spectra in key order
	specs := make([]*core.Spectrum, 0, len(groups))
	for _, spec := range groups {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].PrecursorMZ != specs[j].PrecursorMZ {
			return specs[i].PrecursorMZ < specs[j].PrecursorMZ
		}
		return specs[i].Peptide < specs[j].Peptide
	})
	return specs, nil
}
