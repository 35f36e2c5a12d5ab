package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/filter"
	"github.com/ChrisMcGann/DIAKey/pkg/loader"
	"github.com/ChrisMcGann/DIAKey/pkg/writer/sqlite"
)

var (
	// Flags for library commands
	inputFile     string
	inputFormat   string
	outputFile    string
	topN          int
	cutoffPercent float64
	ionTypes      string
	modsFile      string
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Convert, summarize and validate spectral libraries",
}

func init() {
	libraryCmd.AddCommand(convertCmd)
	libraryCmd.AddCommand(validateCmd)
	libraryCmd.AddCommand(summarizeCmd)

	libraryCmd.PersistentFlags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sptxt, table, mgf, sqlite (auto-detect if not specified)")
	libraryCmd.PersistentFlags().StringVar(&modsFile, "mods", "", "Custom modifications CSV (name,mass)")

	// Convert command flags
	convertCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	convertCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	convertCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	convertCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	convertCmd.Flags().StringVar(&ionTypes, "ion-types", "", "Comma-separated ion types to keep (e.g., 'b,y')")

	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert spectral library to SQLite database",
	Long: `Convert spectral libraries in MSP, SPTXT, TSV/CSV (SpectraST, FragPipe or
Prosit columns) or MGF format to a SQLite library that 'diakey id' loads
directly.

Examples:
  # Convert MSP file with default settings
  diakey library convert --in library.msp --out library.db

  # Keep the 10 most intense b and y ions
  diakey library convert --in library.sptxt --out library.db --top-n 10 --ion-types b,y`,
	RunE: runConvert,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long:  `Validate that a library file is properly formatted and every spectrum has a peptide, charge, precursor m/z and peaks.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize spectral library contents",
	Long:  `Print summary statistics about a spectral library including entry and decoy counts, precursor m/z range and charge states.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runConvert(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	format, err := loader.ParseFormat(inputFormat, inputFile)
	if err != nil {
		return err
	}
	if format == loader.SQLite {
		return fmt.Errorf("input is already a SQLite library")
	}
	modDB, err := loadModDatabase(cmd, modsFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Converting %s to %s...\n", inputFile, outputFile)
	fmt.Fprintf(out, "Format: %s\n", format)
	if topN > 0 {
		fmt.Fprintf(out, "Top N filter: %d\n", topN)
	}
	if cutoffPercent > 0 {
		fmt.Fprintf(out, "Intensity cutoff: %.1f%%\n", cutoffPercent)
	}

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
	}
	if ionTypes != "" {
		for _, t := range strings.Split(ionTypes, ",") {
			filterConfig.IonTypes = append(filterConfig.IonTypes, strings.TrimSpace(t))
		}
		fmt.Fprintf(out, "Ion types: %s\n", ionTypes)
	}

	reader, closer, err := loader.OpenLibrary(inputFile, format, modDB)
	if err != nil {
		return err
	}
	defer closer.Close()

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	count := 0
	skipped := 0
	for reader.Next() {
		spec := reader.Spectrum()
		filterConfig.Apply(spec)

		if err := spec.Validate(); err != nil {
			warn(cmd, "invalid spectrum %s: %v", spec.Name(), err)
			skipped++
			continue
		}
		if err := writer.WriteSpectrum(spec); err != nil {
			return fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}

		count++
		if count%1000 == 0 {
			progress(cmd, "Processed %d spectra...\n", count)
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	fmt.Fprintf(out, "\nConversion complete!\n")
	fmt.Fprintf(out, "Processed: %d spectra\n", count)
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped: %d spectra (validation errors)\n", skipped)
	}
	fmt.Fprintf(out, "Output: %s\n", outputFile)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := loader.ParseFormat(inputFormat, path)
	if err != nil {
		return err
	}
	modDB, err := loadModDatabase(cmd, modsFile)
	if err != nil {
		return err
	}
	reader, closer, err := loader.OpenLibrary(path, format, modDB)
	if err != nil {
		return err
	}
	defer closer.Close()

	// Only normalization, no peak selection.
	var normalize filter.Config
	total, invalid := 0, 0
	for reader.Next() {
		spec := reader.Spectrum()
		total++
		normalize.Apply(spec)
		if err := spec.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			invalid++
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d spectra, %d invalid\n", path, total, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d of %d spectra failed validation", invalid, total)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := loader.ParseFormat(inputFormat, path)
	if err != nil {
		return err
	}
	modDB, err := loadModDatabase(cmd, modsFile)
	if err != nil {
		return err
	}

	skipped := 0
	lib, err := loader.LoadLibrary(path, format, &filter.Config{}, modDB, func(spec *core.Spectrum, err error) {
		skipped++
	})
	if err != nil {
		return err
	}
	s := lib.Summarize()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Library: %s\n", path)
	fmt.Fprintf(out, "Entries: %d\n", s.Entries)
	if s.Entries > 0 {
		fmt.Fprintf(out, "Decoys: %d (%.1f%%)\n", s.Decoys, 100*float64(s.Decoys)/float64(s.Entries))
		fmt.Fprintf(out, "Peaks: %d (%.1f per entry)\n", s.Peaks, float64(s.Peaks)/float64(s.Entries))
		fmt.Fprintf(out, "Precursor m/z: %.4f - %.4f\n", s.MinPrecursor, s.MaxPrecursor)
	}
	charges := make([]int, 0, len(s.Charges))
	for z := range s.Charges {
		charges = append(charges, z)
	}
	sort.Ints(charges)
	for _, z := range charges {
		fmt.Fprintf(out, "Charge %d: %d\n", z, s.Charges[z])
	}
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped: %d invalid spectra\n", skipped)
	}
	return nil
}
