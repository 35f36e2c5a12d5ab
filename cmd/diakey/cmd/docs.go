package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// front matter required by the just-the-docs theme
const docFrontMatter = `---
layout: default
title: %s
parent: %s
nav_order: %d
---
`

var docsDir string

var docsCmd = &cobra.Command{
	Use:    "docs",
	Short:  "Generate Markdown documentation for every command",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(docsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create docs directory: %w", err)
		}
		order := 0
		prepend := func(filename string) string {
			base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
			parts := strings.Split(base, "_")
			parent := ""
			if len(parts) > 1 {
				parent = parts[len(parts)-2]
			}
			order++
			return fmt.Sprintf(docFrontMatter, parts[len(parts)-1], parent, order)
		}
		if err := doc.GenMarkdownTreeCustom(rootCmd, docsDir, prepend, docLink); err != nil {
			return err
		}
		progress(cmd, "Output: %s\n", docsDir)
		return nil
	},
}

// docLink returns the URL of a documentation page
func docLink(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "diakey" {
		return "/"
	}
	return base
}

func init() {
	docsCmd.Flags().StringVar(&docsDir, "dir", "./docs", "Output directory for Markdown files")
	rootCmd.AddCommand(docsCmd)
}
