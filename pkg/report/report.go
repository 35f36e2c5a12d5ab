// Package report reads and writes identification tables and quantification
// matrices as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/quant"
)

// Columns of an identification table, in output order.
var Columns = []string{
	"fileName",
	"scan",
	"MzEXP",
	"peptide",
	"protein",
	"MzLIB",
	"zLIB",
	"cosine",
	"name",
	"Peak(Query)",
	"Peaks(Library)",
	"shared",
	"ionCount",
	"CompensationVoltage",
	"totalWindowWidth",
	"MaCC_Score",
	"excludeNum",
	"isDecoy",
}

// ProteinColumns are appended to Columns on protein-level output.
var ProteinColumns = []string{
	"leadingProtein",
	"proteinCosine",
	"uniquePeptide",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func record(id *core.Identification, protein bool) []string {
	rec := []string{
		id.FileName,
		id.Scan,
		formatFloat(id.QueryMZ),
		id.Peptide,
		id.Protein,
		formatFloat(id.LibraryMZ),
		strconv.Itoa(id.LibraryCharge),
		formatFloat(id.Cosine),
		id.Name,
		strconv.Itoa(id.QueryPeaks),
		strconv.Itoa(id.LibraryPeaks),
		strconv.Itoa(id.Shared),
		formatFloat(id.IonCount),
		formatFloat(id.CompensationVoltage),
		formatFloat(id.WindowWidth),
		formatFloat(id.MaCC),
		strconv.Itoa(id.ExcludeNum),
		flag(id.Decoy),
	}
	if protein {
		rec = append(rec, id.LeadingProtein, formatFloat(id.ProteinCosine), flag(id.UniquePeptide))
	}
	return rec
}

// Write writes ids as CSV. protein adds the protein inference columns.
func Write(w io.Writer, ids []*core.Identification, protein bool) error {
	cw := csv.NewWriter(w)
	header := Columns
	if protein {
		header = append(append([]string(nil), Columns...), ProteinColumns...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, id := range ids {
		if err := cw.Write(record(id, protein)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes ids to path, replacing any existing file.
func WriteFile(path string, ids []*core.Identification, protein bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, ids, protein); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Required columns on read. Others default to zero values when absent.
var required = []string{"fileName", "scan", "peptide", "protein", "MaCC_Score"}

// Read parses an identification table. The decoy flag comes from the
// isDecoy column; tables without it fall back to the protein name.
func Read(r io.Reader) ([]*core.Identification, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &core.ValidationError{
			Field:   "columns",
			Message: fmt.Sprintf("identification file is missing expected column(s). Missing values: [%s]", strings.Join(missing, ", ")),
		}
	}

	var ids []*core.Identification
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p := rowParser{rec: rec, col: col}
		id := &core.Identification{
			FileName:            p.str("fileName"),
			Scan:                p.str("scan"),
			QueryMZ:             p.float("MzEXP"),
			Peptide:             p.str("peptide"),
			Protein:             p.str("protein"),
			LibraryMZ:           p.float("MzLIB"),
			LibraryCharge:       p.integer("zLIB"),
			Cosine:              p.float("cosine"),
			Name:                p.str("name"),
			QueryPeaks:          p.integer("Peak(Query)"),
			LibraryPeaks:        p.integer("Peaks(Library)"),
			Shared:              p.integer("shared"),
			IonCount:            p.float("ionCount"),
			CompensationVoltage: p.float("CompensationVoltage"),
			WindowWidth:         p.float("totalWindowWidth"),
			MaCC:                p.float("MaCC_Score"),
			ExcludeNum:          p.integer("excludeNum"),
			LeadingProtein:      p.str("leadingProtein"),
			ProteinCosine:       p.float("proteinCosine"),
			UniquePeptide:       p.integer("uniquePeptide") == 1,
		}
		if _, ok := col["isDecoy"]; ok {
			id.Decoy = p.integer("isDecoy") == 1
		} else {
			id.Decoy = core.IsDecoyName(id.Protein)
		}
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadFile reads an identification table from path.
func ReadFile(path string) ([]*core.Identification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	ids, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// rowParser reads typed fields from a record, keeping the first error.
type rowParser struct {
	rec []string
	col map[string]int
	err error
}

func (p *rowParser) str(name string) string {
	i, ok := p.col[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return p.rec[i]
}

func (p *rowParser) float(name string) float64 {
	s := strings.TrimSpace(p.str(name))
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}

func (p *rowParser) integer(name string) int {
	s := strings.TrimSpace(p.str(name))
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// pandas writes integer columns with missing values as floats
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.err = fmt.Errorf("column %s: %w", name, err)
			return 0
		}
		return int(f)
	}
	return v
}

// WriteMatrix writes m with one row per run and one column per key.
func WriteMatrix(w io.Writer, m *quant.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.Keys...)); err != nil {
		return err
	}
	for r, run := range m.Runs {
		rec := make([]string, 0, len(m.Keys)+1)
		rec = append(rec, run)
		for _, v := range m.Values[r] {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrixFile writes m to path.
func WriteMatrixFile(path string, m *quant.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteMatrix(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
