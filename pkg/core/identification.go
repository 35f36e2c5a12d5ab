package core

// Identification is one scored (library entry, query scan) pair enriched
// with metadata from both sides. It is the row type of every DIAKey report.
type Identification struct {
	FileName            string
	Scan                string
	QueryMZ             float64 // MzEXP
	Peptide             string
	Protein             string
	LibraryMZ           float64 // MzLIB
	LibraryCharge       int     // zLIB
	Cosine              float64
	Name                string // Library identifier
	QueryPeaks          int
	LibraryPeaks        int
	Shared              int
	IonCount            float64 // Matched query intensity above the precursor m/z
	CompensationVoltage float64
	WindowWidth         float64
	MaCC                float64
	ExcludeNum          int // Matched peaks at or below the precursor m/z
	Decoy               bool

	// Protein-level output only
	LeadingProtein string
	ProteinCosine  float64
	UniquePeptide  bool
}

// IsDecoy reports whether the identification came from a decoy library entry.
func (id *Identification) IsDecoy() bool {
	return id.Decoy
}
