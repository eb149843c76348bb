package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"receiptd/internal/entity"
	"receiptd/internal/repository"
)

// Service is a tiny façade over the repository that produces XLSX bytes for exports.
type Service struct {
	receiptsRepo repository.ReceiptRepository
	logger       *slog.Logger
}

func NewService(repo repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receiptsRepo: repo, logger: logger}
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) for the given
// filter. One row per receipt; items are joined into a single cell in
// document order.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, f repository.Filter) ([]byte, error) {
	start := time.Now()

	recs, err := s.receiptsRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)

	headers := []string{
		"Date",
		"Time",
		"Store",
		"Items",
		"Subtotal",
		"Tax",
		"Total",
		"Payment Method",
		"Confidence",
		"Extraction Path",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}
		writeMoney := func(col int, v *float64) {
			if v != nil {
				write(col, *v)
			}
		}

		write(1, r.Date)
		write(2, r.Time)
		write(3, r.StoreName)
		write(4, truncate(joinItems(r.Items), 140))
		writeMoney(5, r.Subtotal)
		writeMoney(6, r.Tax)
		writeMoney(7, r.Total)
		write(8, r.PaymentMethod)
		write(9, r.ConfidenceScore)
		write(10, r.ExtractionPath)

		row++
	}

	// Widen a few columns
	_ = wb.SetColWidth(sheet, "A", "B", 12) // date, time
	_ = wb.SetColWidth(sheet, "C", "C", 24) // store
	_ = wb.SetColWidth(sheet, "D", "D", 48) // items
	_ = wb.SetColWidth(sheet, "E", "G", 12) // amounts
	_ = wb.SetColWidth(sheet, "H", "H", 16) // payment
	_ = wb.SetColWidth(sheet, "I", "J", 14) // confidence, path

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinItems(items []entity.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", it.ItemName, it.ItemPrice))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
