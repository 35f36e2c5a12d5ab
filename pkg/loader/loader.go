// Package loader opens library and query files of every supported format
// behind a common streaming interface.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/filter"
	"github.com/ChrisMcGann/DIAKey/pkg/library"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/mgf"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/msp"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/mzml"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/sptxt"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/sqlite"
	"github.com/ChrisMcGann/DIAKey/pkg/reader/table"
)

// Format is a file format name.
type Format string

const (
	MSP    Format = "msp"
	SPTXT  Format = "sptxt"
	Table  Format = "table"
	MGF    Format = "mgf"
	SQLite Format = "sqlite"
	MzML   Format = "mzml"
)

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".msp":
		return MSP, nil
	case ".sptxt":
		return SPTXT, nil
	case ".tsv", ".csv":
		return Table, nil
	case ".mgf":
		return MGF, nil
	case ".db", ".sqlite", ".sqlite3":
		return SQLite, nil
	case ".mzml":
		return MzML, nil
	}
	return "", fmt.Errorf("cannot auto-detect format from extension '%s'", ext)
}

// ParseFormat resolves a format name, detecting it from path when name is
// empty.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		return DetectFormat(path)
	}
	f := Format(strings.ToLower(name))
	switch f {
	case MSP, SPTXT, Table, MGF, SQLite, MzML:
		return f, nil
	case "tsv", "csv":
		return Table, nil
	case "db":
		return SQLite, nil
	}
	return "", fmt.Errorf("invalid format '%s', must be msp, sptxt, table, mgf or sqlite", name)
}

// SpectrumReader streams library spectra.
type SpectrumReader interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// QueryReader streams query spectra.
type QueryReader interface {
	Next() bool
	Spectrum() *core.QuerySpectrum
	Err() error
}

type sliceReader struct {
	spectra []*core.Spectrum
	i       int
}

func (r *sliceReader) Next() bool {
	if r.i >= len(r.spectra) {
		return false
	}
	r.i++
	return true
}

func (r *sliceReader) Spectrum() *core.Spectrum { return r.spectra[r.i-1] }
func (r *sliceReader) Err() error               { return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenLibrary opens a library file. The caller closes the returned Closer
// once done reading.
func OpenLibrary(path string, format Format, modDB *core.ModDatabase) (SpectrumReader, io.Closer, error) {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	switch format {
	case Table:
		spectra, err := table.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return &sliceReader{spectra: spectra}, nopCloser{}, nil
	case SQLite:
		r, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case MzML:
		return nil, nil, fmt.Errorf("%s: mzML holds query spectra, not a library", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	switch format {
	case MSP:
		return msp.NewReader(f, modDB), f, nil
	case SPTXT:
		return sptxt.NewReader(f, modDB), f, nil
	case MGF:
		return mgf.NewReader(f), f, nil
	}
	f.Close()
	return nil, nil, fmt.Errorf("unsupported library format: %s", format)
}

// LoadLibrary reads a whole library file into memory. Spectra failing
// validation are passed to skip, when set, and left out; without skip the
// first invalid spectrum is an error.
func LoadLibrary(path string, format Format, cfg *filter.Config, modDB *core.ModDatabase, skip func(*core.Spectrum, error)) (*library.Library, error) {
	r, closer, err := OpenLibrary(path, format, modDB)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	b := library.NewBuilder(cfg)
	for r.Next() {
		spec := r.Spectrum()
		if err := b.Add(spec); err != nil {
			if skip == nil {
				return nil, fmt.Errorf("invalid spectrum %s: %w", spec.Name(), err)
			}
			skip(spec, err)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("error reading library %s: %w", path, err)
	}
	return b.Build(), nil
}

type mgfQueries struct {
	*mgf.Reader
}

func (r mgfQueries) Spectrum() *core.QuerySpectrum { return r.Query() }

// OpenQuery opens an mzML or MGF query file.
func OpenQuery(path string) (QueryReader, io.Closer, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open query file: %w", err)
	}
	switch format {
	case MzML:
		return mzml.NewReader(f), f, nil
	case MGF:
		return mgfQueries{mgf.NewReader(f)}, f, nil
	}
	f.Close()
	return nil, nil, fmt.Errorf("%s: query spectra must be mzML or MGF", path)
}
