package repository

import (
	"context"
	"fmt"
	"log/slog"

	"receiptd/internal/common"
	"receiptd/internal/entity"
)

// AnalyticsRepository aggregates over stored receipts.
type AnalyticsRepository interface {
	Summary(ctx context.Context) (*entity.Analytics, error)
}

type analyticsRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewAnalyticsRepository(db *DB, logger *slog.Logger) AnalyticsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &analyticsRepository{db: db, logger: logger}
}

// Summary computes spend totals and store frequency. Receipts without a
// total contribute to counts but not to amounts; the average is over
// receipts that have a total.
func (r *analyticsRepository) Summary(ctx context.Context) (*entity.Analytics, error) {
	var (
		out      entity.Analytics
		sum      *float64
		avg      *float64
		earliest *string
		latest   *string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(total), AVG(total),
			MIN(NULLIF(tx_date, '')), MAX(NULLIF(tx_date, ''))
		FROM receipts`).
		Scan(&out.TotalReceipts, &sum, &avg, &earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("%w: analytics summary: %v", common.ErrDatabase, err)
	}
	if sum != nil {
		out.TotalAmountSpent = *sum
	}
	if avg != nil {
		out.AverageReceiptAmount = *avg
	}
	if earliest != nil {
		out.EarliestDate = *earliest
	}
	if latest != nil {
		out.LatestDate = *latest
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT store_name, COUNT(*) AS n FROM receipts
		WHERE store_name != ''
		GROUP BY store_name
		ORDER BY n DESC, store_name
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("%w: analytics stores: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc entity.StoreCount
		if err := rows.Scan(&sc.StoreName, &sc.Count); err != nil {
			return nil, fmt.Errorf("%w: scan store count: %v", common.ErrDatabase, err)
		}
		out.TopStores = append(out.TopStores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: analytics stores: %v", common.ErrDatabase, err)
	}
	return &out, nil
}
