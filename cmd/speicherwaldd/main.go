package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "speicherwaldd",
	Short: "SpeicherWald disk-space usage engine",
	Long: `speicherwaldd scans directory trees, records a per-node size and
count rollup in SQLite, and serves scan lifecycle and progress over HTTP.`,
}

var verbose bool

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}
