package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModDatabase maps modification names to mass shifts.
type ModDatabase struct {
	mods map[string]float64
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: make(map[string]float64)}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa]).
// The first row is a header.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read header: %w", err)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(record) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", line)
		}

		name := strings.TrimSpace(record[0])
		mass, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", line, record[1], err)
		}
		db.mods[name] = mass
	}
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int {
	return len(db.mods)
}

// unimod mass shifts for the modifications common in DIA libraries
var defaultMods = map[string]float64{
	"Acetyl":               42.010565,
	"Amidated":             -0.984016,
	"Carbamidomethyl":      57.021464,
	"Carbamyl":             43.005814,
	"Deamidated":           0.984016,
	"Phospho":              79.966331,
	"Oxidation":            15.994915,
	"Methyl":               14.01565,
	"Dimethyl":             28.0313,
	"Trimethyl":            42.04695,
	"Glu->pyro-Glu":        -18.010565,
	"Gln->pyro-Glu":        -17.026549,
	"Pyro-carbamidomethyl": 39.994915,
	"GG":                   114.042927,
	"TMT":                  229.162932,
	"TMT6plex":             229.162932,
	"TMTPro":               304.207146,
	"TMT16plex":            304.207146,
	"iTRAQ4plex":           144.102063,
	"iTRAQ8plex":           304.205360,
	"Label:13C(6)15N(2)":   8.014199,
	"Label:13C(6)15N(4)":   10.008269,
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for name, mass := range defaultMods {
		db.Add(name, mass)
	}
	return db
}
