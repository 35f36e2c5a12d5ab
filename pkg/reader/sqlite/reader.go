// Package sqlite loads spectral libraries written by the DIAKey SQLite writer
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const decoyTag = "decoy"

const selectSpectra = `
	SELECT c.Name, c.Sequence, c.Synonyms, c.Tag,
	       s.PrecursorMass, s.PrecursorCharge, s.Accession,
	       s.blobMass, s.blobIntensity
	FROM SpectrumTable s
	JOIN CompoundTable c ON s.CompoundId = c.CompoundId
	ORDER BY s.SpectrumId
`

// Reader streams spectra from a library database
type Reader struct {
	db          *sql.DB
	rows        *sql.Rows
	path        string
	currentSpec *core.Spectrum
	err         error
}

// Open opens a library database for reading
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rows, err := db.Query(selectSpectra)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}

	return &Reader{db: db, rows: rows, path: path}, nil
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	if r.err != nil || !r.rows.Next() {
		if r.err == nil {
			r.err = r.rows.Err()
		}
		return false
	}

	var (
		name, peptide, sequence, tag, protein sql.NullString
		charge                                sql.NullInt64
		precursor                             float64
		mzBlob, intensityBlob                 []byte
	)
	err := r.rows.Scan(&name, &peptide, &sequence, &tag, &precursor, &charge, &protein, &mzBlob, &intensityBlob)
	if err != nil {
		r.err = fmt.Errorf("failed to scan spectrum: %w", err)
		return false
	}

	mzs, err := decodeFloat64s(mzBlob)
	if err != nil {
		r.err = fmt.Errorf("spectrum %s: blobMass: %w", name.String, err)
		return false
	}
	intensities, err := decodeFloat64s(intensityBlob)
	if err != nil {
		r.err = fmt.Errorf("spectrum %s: blobIntensity: %w", name.String, err)
		return false
	}
	if len(mzs) != len(intensities) {
		r.err = fmt.Errorf("spectrum %s: %d masses but %d intensities", name.String, len(mzs), len(intensities))
		return false
	}

	spec := &core.Spectrum{
		Peptide:      peptide.String,
		Charge:       int(charge.Int64),
		PrecursorMZ:  precursor,
		Identifier:   name.String,
		ProteinName:  protein.String,
		Sequence:     sequence.String,
		Decoy:        tag.String == decoyTag,
		Peaks:        make([]core.Peak, len(mzs)),
		SourceFile:   r.path,
		SourceFormat: "sqlite",
	}
	for i := range mzs {
		spec.Peaks[i] = core.Peak{MZ: mzs[i], Intensity: intensities[i]}
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Close releases the database
func (r *Reader) Close() error {
	r.rows.Close()
	return r.db.Close()
}

// decodeFloat64s decodes a little-endian float64 blob
func decodeFloat64s(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(buf))
	}
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values, nil
}
