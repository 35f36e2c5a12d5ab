// Package sqlite provides SQLite database writing for spectral libraries
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"

	// DecoyTag marks decoy compounds in CompoundTable.Tag
	DecoyTag = "decoy"
)

// Writer handles writing spectra to SQLite database files
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	compoundStmt *sql.Stmt
	spectrumStmt *sql.Stmt
	compoundID   int
	finalized    bool
}

// NewWriter creates a new SQLite writer. All spectra are written in a
// single transaction committed by Finalize.
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		compoundID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if w.tx, err = db.Begin(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS CompoundTable (
		CompoundId INTEGER PRIMARY KEY,
		Formula TEXT,
		Name TEXT,
		Synonyms BLOB_TEXT,
		Tag TEXT,
		Sequence TEXT
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		CompoundId INTEGER REFERENCES CompoundTable(CompoundId),
		PrecursorMass DOUBLE,
		NeutralMass DOUBLE,
		PrecursorCharge INTEGER,
		blobMass BLOB,
		blobIntensity BLOB,
		CreationDate TEXT,
		Accession TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofCompoundsModified INTEGER,
		Description TEXT
	);
	`

	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.compoundStmt, err = w.tx.Prepare(`
		INSERT INTO CompoundTable (CompoundId, Formula, Name, Synonyms, Tag, Sequence)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare compound statement: %w", err)
	}

	w.spectrumStmt, err = w.tx.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, CompoundId, PrecursorMass, NeutralMass, PrecursorCharge,
			blobMass, blobIntensity, CreationDate, Accession
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	return nil
}

// WriteSpectrum writes a single spectrum to the database
func (w *Writer) WriteSpectrum(spec *core.Spectrum) error {
	if w.finalized {
		return fmt.Errorf("database %s already finalized", w.outputPath)
	}
	if !spec.ArePeaksSorted() {
		spec.SortPeaks()
	}

	tag := ""
	if spec.IsDecoy() {
		tag = DecoyTag
	}

	_, err := w.compoundStmt.Exec(
		w.compoundID,     // CompoundId
		spec.ModString(), // Formula (reused for mods)
		spec.Identifier,  // Name
		spec.Sequence,    // Synonyms (stripped sequence)
		tag,              // Tag
		spec.Peptide,     // Sequence
	)
	if err != nil {
		return fmt.Errorf("failed to insert compound: %w", err)
	}

	var neutralMass interface{}
	if spec.Sequence != "" {
		neutralMass = core.CalculateNeutralMass(spec.Sequence, spec.Modifications)
	}

	_, err = w.spectrumStmt.Exec(
		w.compoundID,     // SpectrumId (same as CompoundId for 1:1 mapping)
		w.compoundID,     // CompoundId
		spec.PrecursorMZ, // PrecursorMass
		neutralMass,      // NeutralMass
		spec.Charge,      // PrecursorCharge
		EncodeFloat64s(peakValues(spec.Peaks, true)),  // blobMass
		EncodeFloat64s(peakValues(spec.Peaks, false)), // blobIntensity
		time.Now().Format(headerDateFormat),           // CreationDate
		spec.ProteinName,                              // Accession
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.compoundID++
	return nil
}

// Count returns the number of spectra written so far.
func (w *Writer) Count() int {
	return w.compoundID - 1
}

func peakValues(peaks []core.Peak, useMZ bool) []float64 {
	values := make([]float64, len(peaks))
	for i, peak := range peaks {
		if useMZ {
			values[i] = peak.MZ
		} else {
			values[i] = peak.Intensity
		}
	}
	return values
}

// EncodeFloat64s encodes values as a little-endian float64 blob
func EncodeFloat64s(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// Finalize writes the header and maintenance tables, commits and closes the database
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	w.compoundStmt.Close()
	w.spectrumStmt.Close()

	now := time.Now()
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
		VALUES (?, ?, ?, ?)
	`, 1, now.Format(headerDateFormat), now.Format(headerDateFormat), "DIAKey spectral library")
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	_, err = w.tx.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofCompoundsModified, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.Count(), "")
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
