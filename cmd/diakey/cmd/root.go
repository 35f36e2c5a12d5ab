// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ChrisMcGann/DIAKey/pkg/config"
	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

var (
	// settings shared by every command
	settingsFile string
	quiet        bool

	v = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "diakey",
	Short: "DIAKey - DIA spectral library search and quantification",
	Long: `DIAKey identifies peptides and proteins in DIA mass spectrometry runs by
matching query spectra against a spectral library, controls the false
discovery rate with target-decoy competition, and quantifies proteins
across runs.

Workflow:
- library convert: MSP, SPTXT, TSV/CSV or MGF libraries to SQLite
- id: search mzML or MGF query files, with ppm self-calibration
- score: spectral, peptide and protein FDR plus quantification`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. An interrupt cancels the running search.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "YAML settings file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(libraryCmd)
}

// loadConfig binds the running command's flags to their settings keys and
// resolves the configuration. Binding happens per run because several
// commands share key names.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "settings" || f.Name == "help" {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}
	return config.Load(v, settingsFile)
}

// progress prints a progress line unless quiet is set.
func progress(cmd *cobra.Command, format string, args ...interface{}) {
	if quiet || v.GetBool("quiet") {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func warn(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Warning: "+format+"\n", args...)
}

// loadModDatabase returns the built-in modifications extended by path, or
// by unimod_custom.csv in the working directory when path is empty.
func loadModDatabase(cmd *cobra.Command, path string) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	explicit := path != ""
	if !explicit {
		path = "unimod_custom.csv"
	}
	f, err := os.Open(path)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to open modifications file: %w", err)
		}
		return modDB, nil
	}
	defer f.Close()
	if err := modDB.LoadFromCSV(f); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		warn(cmd, "failed to load %s: %v", path, err)
	}
	return modDB, nil
}
