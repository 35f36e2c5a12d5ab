package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIAKey/pkg/config"
	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/filter"
	"github.com/ChrisMcGann/DIAKey/pkg/identify"
	"github.com/ChrisMcGann/DIAKey/pkg/library"
	"github.com/ChrisMcGann/DIAKey/pkg/loader"
	"github.com/ChrisMcGann/DIAKey/pkg/report"
)

// FullOutputSuffix names the identification table written for each query file.
const FullOutputSuffix = "_fullOutput.csv"

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Identify library peptides in query spectra",
	Long: `Match every MS2 spectrum of the query files against the spectral library,
score library/query pairs by cosine similarity and MaCC score, and write one
identification table per query file.

Unless --correction is -1, a first pass at --tolerance estimates the
instrument's ppm offset and a tighter tolerance from confidently identified
spectra, and matches outside that window are dropped.

Examples:
  # Search two runs with histogram ppm correction
  diakey id --library library.tsv --input run1.mzML --input run2.mzML --output results

  # Use two standard deviations for the corrected tolerance
  diakey id -l library.db -i run1.mzML -o results --correction 2 --threads 8`,
	RunE: runID,
}

func init() {
	idCmd.Flags().StringP("library", "l", "", "Spectral library file (msp, sptxt, tsv/csv, mgf, db)")
	idCmd.Flags().StringSliceP("input", "i", nil, "Query files (mzML or MGF), repeatable")
	idCmd.Flags().StringP("output", "o", ".", "Output directory")
	idCmd.Flags().Float64P("tolerance", "t", 30, "Initial fragment tolerance in ppm")
	idCmd.Flags().Float64P("correction", "c", config.CorrectionHistogram, "ppm correction: -1 none, 0 histogram, k>0 k standard deviations")
	idCmd.Flags().Int("histogram-bins", 200, "Histogram bins for ppm correction")
	idCmd.Flags().Int("max-peaks", filter.DefaultTopN, "Library peaks kept per entry")
	idCmd.Flags().Int("min-shared", 1, "Minimum matched peaks per library/query pair")
	idCmd.Flags().String("precursor-window", "isolation", "Candidate selection: isolation or dia-wide")
	idCmd.Flags().Int("threads", 1, "Number of worker threads")
	idCmd.Flags().String("mods", "", "Custom modifications CSV (name,mass)")
}

func runID(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Library == "" {
		return fmt.Errorf("a spectral library is required (--library)")
	}
	if len(cfg.Input) == 0 {
		return fmt.Errorf("at least one query file is required (--input)")
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	modsPath, _ := cmd.Flags().GetString("mods")
	modDB, err := loadModDatabase(cmd, modsPath)
	if err != nil {
		return err
	}

	lib, err := loadLibrary(cmd, cfg, modDB)
	if err != nil {
		return err
	}

	search := identify.Config{
		Tolerance:     cfg.Tolerance,
		Correction:    cfg.Correction,
		HistogramBins: cfg.HistogramBins,
		MinShared:     cfg.MinShared,
		Window:        cfg.Window(),
		Threads:       cfg.Threads,
		FDR:           cfg.FDR,
		Progress: func(done int) {
			if done%1000 == 0 {
				progress(cmd, "Processed %d spectra...\n", done)
			}
		},
	}

	for _, input := range cfg.Input {
		if err := identifyFile(cmd.Context(), cmd, lib, input, cfg.Output, search); err != nil {
			return err
		}
	}
	return nil
}

func loadLibrary(cmd *cobra.Command, cfg *config.Config, modDB *core.ModDatabase) (*library.Library, error) {
	format, err := loader.DetectFormat(cfg.Library)
	if err != nil {
		return nil, err
	}
	progress(cmd, "Loading library %s...\n", cfg.Library)

	skipped := 0
	lib, err := loader.LoadLibrary(cfg.Library, format, &filter.Config{TopN: cfg.MaxPeaks}, modDB,
		func(spec *core.Spectrum, err error) {
			warn(cmd, "invalid spectrum %s: %v", spec.Name(), err)
			skipped++
		})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		warn(cmd, "skipped %d invalid library spectra", skipped)
	}
	sum := lib.Summarize()
	progress(cmd, "Library: %d entries (%d decoys)\n", sum.Entries, sum.Decoys)
	return lib, nil
}

func identifyFile(ctx context.Context, cmd *cobra.Command, lib *library.Library, input, outDir string, search identify.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	src, closer, err := loader.OpenQuery(input)
	if err != nil {
		return err
	}
	defer closer.Close()

	progress(cmd, "Searching %s...\n", input)
	res, err := identify.Run(ctx, lib, src, filepath.Base(input), search)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if res.Calibration != nil {
		progress(cmd, "ppm correction: offset %.3f, tolerance %.3f\n", res.Calibration.Offset, res.Calibration.Tolerance)
	}

	out := filepath.Join(outDir, fileHeader(input)+FullOutputSuffix)
	if err := report.WriteFile(out, res.Identifications, false); err != nil {
		return err
	}
	progress(cmd, "Searched %d spectra, %d identifications\nOutput: %s\n", res.Spectra, len(res.Identifications), out)
	return nil
}

// fileHeader strips the directory and extension from a query file name.
func fileHeader(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
