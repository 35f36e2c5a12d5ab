// DIAKey - DIA spectral library search, FDR control and quantification
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/DIAKey/cmd/diakey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
