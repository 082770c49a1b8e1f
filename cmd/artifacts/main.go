// Command artifacts inspects, warms and purges the cached aggregate CSVs in
// the data directory.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
