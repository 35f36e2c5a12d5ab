package core

// QuerySpectrum is one experimental MS2 scan to be identified.
type QuerySpectrum struct {
	Scan                string
	PrecursorMZ         float64
	Charge              int
	Peaks               []Peak
	CompensationVoltage float64
	WindowWidth         float64 // Total isolation window width in m/z
}

// PeaksCount returns the number of peaks in the scan.
func (q *QuerySpectrum) PeaksCount() int {
	return len(q.Peaks)
}

// IsolationWindow returns the m/z range selected for fragmentation.
func (q *QuerySpectrum) IsolationWindow() (lo, hi float64) {
	half := q.WindowWidth / 2
	return q.PrecursorMZ - half, q.PrecursorMZ + half
}
