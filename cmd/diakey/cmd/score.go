package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/fdr"
	"github.com/ChrisMcGann/DIAKey/pkg/quant"
	"github.com/ChrisMcGann/DIAKey/pkg/report"
)

// Output file names of the score command.
const (
	SpectralSuffix       = "_spectralFDR.csv"
	PeptideSuffix        = "_peptideFDR.csv"
	ProteinSuffix        = "_proteinFDR.csv"
	CommonPeptidesOutput = "commonPeptides.csv"
	CommonProteinsOutput = "commonProteins.csv"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Apply FDR filtering and quantify identified proteins",
	Long: `Filter identification tables written by 'diakey id' at the spectral,
peptide and protein level with target-decoy FDR, then compile peptide and
protein quantities across all runs.

Protein inference and protein quantification need protein columns of the
form "N/proteinA/proteinB"; when any row lacks that form they are skipped.

Examples:
  diakey score --input results/run1_fullOutput.csv --input results/run2_fullOutput.csv --output fdr

  # Align protein quantities across runs with MaxLFQ
  diakey score -i results/run1_fullOutput.csv -i results/run2_fullOutput.csv -o fdr --quant-method maxlfq`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringSliceP("input", "i", nil, "Identification tables from 'diakey id', repeatable")
	scoreCmd.Flags().StringP("output", "o", ".", "Output directory")
	scoreCmd.Flags().Float64("fdr", fdr.DefaultThreshold, "FDR threshold")
	scoreCmd.Flags().String("quant-method", string(quant.MethodAverage), "Protein quantification: average or maxlfq")
	scoreCmd.Flags().Int("min-shared-peptides", 1, "Minimum shared peptides for a MaxLFQ run pair")
}

// runScores are the filtered tables of one identification file.
type runScores struct {
	header   string
	peptides []*core.Identification
	proteins []*core.Identification // nil when protein inference was skipped
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Input) == 0 {
		return fmt.Errorf("at least one identification file is required (--input)")
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var runs []runScores
	for _, input := range cfg.Input {
		r, err := scoreFile(cmd, input, cfg.Output, cfg.FDR)
		if err != nil {
			return err
		}
		runs = append(runs, r)
	}

	headers := make([]string, len(runs))
	peptides := make([][]*core.Identification, len(runs))
	proteinsOK := true
	for i, r := range runs {
		headers[i] = r.header
		peptides[i] = r.peptides
		if r.proteins == nil {
			proteinsOK = false
		}
	}

	out := filepath.Join(cfg.Output, CommonPeptidesOutput)
	if err := report.WriteMatrixFile(out, quant.PeptideQuantities(headers, peptides)); err != nil {
		return err
	}
	progress(cmd, "Output: %s\n", out)

	if !proteinsOK {
		warn(cmd, "protein quantification skipped, not every run has protein groups")
		return nil
	}
	proteins := make([][]*core.Identification, len(runs))
	for i, r := range runs {
		proteins[i] = r.proteins
	}
	m, err := quant.ProteinQuantities(headers, proteins, cfg.Method(), cfg.MinSharedPeptides)
	if err != nil {
		return fmt.Errorf("protein quantification: %w", err)
	}
	out = filepath.Join(cfg.Output, CommonProteinsOutput)
	if err := report.WriteMatrixFile(out, m); err != nil {
		return err
	}
	progress(cmd, "Output: %s\n", out)
	return nil
}

func scoreFile(cmd *cobra.Command, input, outDir string, threshold float64) (runScores, error) {
	header := filepath.Base(input)
	if strings.HasSuffix(header, FullOutputSuffix) {
		header = strings.TrimSuffix(header, FullOutputSuffix)
	} else {
		header = strings.TrimSuffix(header, filepath.Ext(header))
	}
	r := runScores{header: header}

	ids, err := report.ReadFile(input)
	if err != nil {
		return r, err
	}
	progress(cmd, "Scoring %s (%d identifications)...\n", input, len(ids))

	spectral, err := fdr.Spectral(ids, threshold)
	if err != nil {
		return r, fdrError(input, "spectral", err)
	}
	if err := writeTable(cmd, outDir, header+SpectralSuffix, spectral, false); err != nil {
		return r, err
	}

	r.peptides, err = fdr.Peptide(ids, threshold)
	if err != nil {
		return r, fdrError(input, "peptide", err)
	}
	if err := writeTable(cmd, outDir, header+PeptideSuffix, r.peptides, false); err != nil {
		return r, err
	}

	if !fdr.ProteinGroupFormat(r.peptides) {
		warn(cmd, "%s: protein column is not in the N/protein/... form, protein FDR skipped", input)
		return r, nil
	}
	r.proteins, err = fdr.Protein(r.peptides, threshold)
	if err != nil {
		return r, fdrError(input, "protein", err)
	}
	if r.proteins == nil {
		r.proteins = []*core.Identification{}
	}
	if err := writeTable(cmd, outDir, header+ProteinSuffix, r.proteins, true); err != nil {
		return r, err
	}
	return r, nil
}

func fdrError(input, level string, err error) error {
	return fmt.Errorf("%s: %s FDR: %w", input, level, err)
}

func writeTable(cmd *cobra.Command, dir, name string, ids []*core.Identification, protein bool) error {
	out := filepath.Join(dir, name)
	if err := report.WriteFile(out, ids, protein); err != nil {
		return err
	}
	progress(cmd, "%s: %d rows\n", out, len(ids))
	return nil
}
