package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"receiptd/internal/common"
	"receiptd/internal/document"
	"receiptd/internal/pipeline"
	"receiptd/internal/rules"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract a structured receipt from a document or text",
	Long: `Run the extraction pipeline against a local file (PDF, image or
plain text) and print the structured receipt as JSON. With --text the
argument is treated as receipt text instead of a path.

The AI extractor is used when an API key is configured; otherwise, or on
any AI failure, extraction falls back to the deterministic rules.`,
	Example: `  # Extract from a scanned receipt
  receiptctl extract costco.png

  # Extract from pasted text, rules only
  receiptctl extract --text "COSTCO WHOLESALE ..." --no-ai`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("text", false, "treat the argument as receipt text, not a path")
	extractCmd.Flags().Bool("no-ai", false, "skip the AI extractor, use deterministic rules only")
	extractCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()

	asText, _ := cmd.Flags().GetBool("text")
	noAI, _ := cmd.Flags().GetBool("no-ai")
	outputPath, _ := cmd.Flags().GetString("output")

	llmCfg := cfg.LLM
	if noAI {
		llmCfg.APIKey = ""
	}
	ai, err := pipeline.NewExtractorFromConfig(cmd.Context(), llmCfg, logger)
	if err != nil {
		return err
	}

	adapter := document.NewAdapter(cfg.OCR, logger)
	orch := pipeline.NewOrchestrator(ai, rules.NewExtractor(logger), logger)
	pl := pipeline.NewService(adapter, orch, logger)

	var result pipeline.Result
	if asText {
		result, err = pl.ProcessText(cmd.Context(), args[0])
	} else {
		path := args[0]
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("file path is required")
		}
		result, err = pl.ProcessDocument(cmd.Context(), document.RawDocument{
			Path: path,
			Name: filepath.Base(path),
		})
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result.Receipt, "", "  ")
	if err != nil {
		return err
	}
	if outputPath != "" {
		return os.WriteFile(outputPath, append(out, '\n'), 0o644)
	}
	fmt.Println(string(out))
	return nil
}
