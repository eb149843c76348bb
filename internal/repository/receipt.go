package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/entity"
)

// Filter narrows List results. Zero values mean "no constraint"; dates
// are inclusive YYYY-MM-DD bounds.
type Filter struct {
	Store    string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// ReceiptRepository is the persistence contract for structured receipts.
type ReceiptRepository interface {
	Create(ctx context.Context, rec *entity.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	List(ctx context.Context, f Filter) ([]*entity.Receipt, error)
	Count(ctx context.Context, f Filter) (int, error)
	Update(ctx context.Context, rec *entity.Receipt) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

const insertReceipt = `INSERT INTO receipts
	(id, store_name, tx_date, tx_time, subtotal, tax, total,
	 payment_method, cashier, confidence_score, extraction_path, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertItem = `INSERT INTO receipt_items (receipt_id, position, item_name, item_price)
	VALUES (?, ?, ?, ?)`

// Create assigns an ID and timestamps if unset and persists the receipt
// together with its items in one transaction.
func (r *receiptRepository) Create(ctx context.Context, rec *entity.Receipt) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.rebind(insertReceipt),
		rec.ID.String(), rec.StoreName, rec.Date, rec.Time,
		rec.Subtotal, rec.Tax, rec.Total,
		rec.PaymentMethod, rec.Cashier, rec.ConfidenceScore, rec.ExtractionPath,
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: insert receipt: %v", common.ErrDatabase, err)
	}
	if err := r.insertItems(ctx, tx, rec.ID, rec.Items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.logger.Info("repo.receipt.created", "id", rec.ID, "store", rec.StoreName, "items", len(rec.Items))
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, store_name, tx_date, tx_time, subtotal, tax, total,
			payment_method, cashier, confidence_score, extraction_path, created_at, updated_at
		FROM receipts WHERE id = ?`), id.String())

	rec, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: receipt %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get receipt: %v", common.ErrDatabase, err)
	}
	if err := r.loadItems(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *receiptRepository) List(ctx context.Context, f Filter) ([]*entity.Receipt, error) {
	q := `SELECT id, store_name, tx_date, tx_time, subtotal, tax, total,
			payment_method, cashier, confidence_score, extraction_path, created_at, updated_at
		FROM receipts WHERE 1=1`
	var args []any
	if f.Store != "" {
		q += " AND store_name = ?"
		args = append(args, f.Store)
	}
	if f.DateFrom != "" {
		q += " AND tx_date >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		q += " AND tx_date <= ?"
		args = append(args, f.DateTo)
	}
	q += " ORDER BY tx_date DESC, created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list receipts: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan receipt: %v", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list receipts: %v", common.ErrDatabase, err)
	}
	for _, rec := range out {
		if err := r.loadItems(ctx, rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Count returns how many receipts match the filter, ignoring Limit and
// Offset.
func (r *receiptRepository) Count(ctx context.Context, f Filter) (int, error) {
	q := `SELECT COUNT(*) FROM receipts WHERE 1=1`
	var args []any
	if f.Store != "" {
		q += " AND store_name = ?"
		args = append(args, f.Store)
	}
	if f.DateFrom != "" {
		q += " AND tx_date >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		q += " AND tx_date <= ?"
		args = append(args, f.DateTo)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, r.db.rebind(q), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count receipts: %v", common.ErrDatabase, err)
	}
	return n, nil
}

// Update rewrites the receipt row and replaces its items.
func (r *receiptRepository) Update(ctx context.Context, rec *entity.Receipt) error {
	rec.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE receipts SET store_name = ?, tx_date = ?, tx_time = ?,
			subtotal = ?, tax = ?, total = ?,
			payment_method = ?, cashier = ?, confidence_score = ?, extraction_path = ?,
			updated_at = ?
		WHERE id = ?`),
		rec.StoreName, rec.Date, rec.Time,
		rec.Subtotal, rec.Tax, rec.Total,
		rec.PaymentMethod, rec.Cashier, rec.ConfidenceScore, rec.ExtractionPath,
		rec.UpdatedAt.Format(time.RFC3339), rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: update receipt: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: receipt %s", common.ErrNotFound, rec.ID)
	}

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM receipt_items WHERE receipt_id = ?`), rec.ID.String()); err != nil {
		return fmt.Errorf("%w: clear items: %v", common.ErrDatabase, err)
	}
	if err := r.insertItems(ctx, tx, rec.ID, rec.Items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *receiptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	// sqlite foreign key enforcement depends on a pragma, so delete the
	// items explicitly rather than trusting ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM receipt_items WHERE receipt_id = ?`), id.String()); err != nil {
		return fmt.Errorf("%w: delete items: %v", common.ErrDatabase, err)
	}
	res, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM receipts WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("%w: delete receipt: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: receipt %s", common.ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.logger.Info("repo.receipt.deleted", "id", id)
	return nil
}

func (r *receiptRepository) insertItems(ctx context.Context, tx *sql.Tx, id uuid.UUID, items []entity.Item) error {
	for i, it := range items {
		if _, err := tx.ExecContext(ctx, r.db.rebind(insertItem),
			id.String(), i, it.ItemName, it.ItemPrice); err != nil {
			return fmt.Errorf("%w: insert item %d: %v", common.ErrDatabase, i, err)
		}
	}
	return nil
}

func (r *receiptRepository) loadItems(ctx context.Context, rec *entity.Receipt) error {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT item_name, item_price FROM receipt_items
		WHERE receipt_id = ? ORDER BY position`), rec.ID.String())
	if err != nil {
		return fmt.Errorf("%w: load items: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	rec.Items = []entity.Item{}
	for rows.Next() {
		var it entity.Item
		if err := rows.Scan(&it.ItemName, &it.ItemPrice); err != nil {
			return fmt.Errorf("%w: scan item: %v", common.ErrDatabase, err)
		}
		rec.Items = append(rec.Items, it)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec       entity.Receipt
		idStr     string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&idStr, &rec.StoreName, &rec.Date, &rec.Time,
		&rec.Subtotal, &rec.Tax, &rec.Total,
		&rec.PaymentMethod, &rec.Cashier, &rec.ConfidenceScore, &rec.ExtractionPath,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}
