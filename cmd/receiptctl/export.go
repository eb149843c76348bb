package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"receiptd/internal/common"
	"receiptd/internal/export"
	"receiptd/internal/repository"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored receipts to an XLSX workbook",
	Example: `  # Everything
  receiptctl export -o receipts.xlsx

  # One store, one month
  receiptctl export --store COSTCO --from 2026-08-01 --to 2026-08-31 -o costco.xlsx`,
	RunE: runExport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg := common.LoadConfig()
		db, err := repository.Open(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)

	exportCmd.Flags().StringP("output", "o", "receipts.xlsx", "output file path")
	exportCmd.Flags().String("store", "", "only receipts from this store")
	exportCmd.Flags().String("from", "", "start date (YYYY-MM-DD), inclusive")
	exportCmd.Flags().String("to", "", "end date (YYYY-MM-DD), inclusive")
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()

	outputPath, _ := cmd.Flags().GetString("output")
	store, _ := cmd.Flags().GetString("store")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	db, err := repository.Open(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	receipts := repository.NewReceiptRepository(db, logger)
	svc := export.NewService(receipts, logger)

	data, err := svc.ExportReceiptsXLSX(cmd.Context(), repository.Filter{
		Store:    store,
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", outputPath, len(data))
	return nil
}
