// receiptctl is the companion CLI: run extraction on local files or
// text without the daemon, and export the stored receipts to XLSX.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "receiptctl",
	Short: "Receipt extraction toolkit",
	Long: `receiptctl runs the receipt extraction pipeline from the command line:
extract structured data from a receipt document or raw text, apply the
database schema, or export stored receipts to a spreadsheet.

Configuration comes from the environment and an optional .env file, the
same way the receiptd daemon reads it.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
