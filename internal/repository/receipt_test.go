package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/entity"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{
		Driver: "sqlite",
		DSN:    ":memory:",
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func money(v float64) *float64 { return &v }

func sampleReceipt() *entity.Receipt {
	return &entity.Receipt{
		StoreName: "COSTCO",
		Date:      "2026-08-15",
		Time:      "14:32",
		Items: []entity.Item{
			{ItemName: "SOCKS", ItemPrice: 4.50},
			{ItemName: "GREETING CARD", ItemPrice: 2.30},
			{ItemName: "Item 3", ItemPrice: 1.00},
		},
		Subtotal:        money(7.80),
		Tax:             money(0.62),
		Total:           money(8.42),
		PaymentMethod:   "debit card",
		ConfidenceScore: 0.42,
		ExtractionPath:  entity.PathDeterministic,
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	rec := sampleReceipt()
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Fatal("create must assign an id")
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StoreName != "COSTCO" || got.Date != "2026-08-15" || got.Time != "14:32" {
		t.Errorf("fields lost: %+v", got)
	}
	if got.Subtotal == nil || *got.Subtotal != 7.80 {
		t.Errorf("subtotal = %v", got.Subtotal)
	}
	if len(got.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(got.Items))
	}
	// item order must survive the round trip
	for i, want := range []string{"SOCKS", "GREETING CARD", "Item 3"} {
		if got.Items[i].ItemName != want {
			t.Errorf("item %d = %q, want %q", i, got.Items[i].ItemName, want)
		}
	}
}

func TestReceiptNilMoneyStaysNil(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	rec := &entity.Receipt{StoreName: "X", Items: []entity.Item{}}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subtotal != nil || got.Tax != nil || got.Total != nil {
		t.Errorf("absent money fields must come back nil: %+v", got)
	}
}

func TestReceiptUpdate(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	rec := sampleReceipt()
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec.StoreName = "COSTCO WHOLESALE"
	rec.Items = []entity.Item{{ItemName: "SOCKS", ItemPrice: 4.50}}
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StoreName != "COSTCO WHOLESALE" {
		t.Errorf("store = %q", got.StoreName)
	}
	if len(got.Items) != 1 {
		t.Errorf("items = %d, want replaced set", len(got.Items))
	}
}

func TestReceiptDelete(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	rec := sampleReceipt()
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, rec.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestReceiptNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReceiptListFilters(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	for _, seed := range []struct {
		store string
		date  string
	}{
		{"COSTCO", "2026-08-01"},
		{"COSTCO", "2026-08-15"},
		{"WALMART", "2026-07-01"},
	} {
		rec := &entity.Receipt{StoreName: seed.store, Date: seed.date, Items: []entity.Item{}}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	byStore, err := repo.List(ctx, Filter{Store: "COSTCO"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byStore) != 2 {
		t.Errorf("store filter = %d, want 2", len(byStore))
	}

	byRange, err := repo.List(ctx, Filter{DateFrom: "2026-08-01", DateTo: "2026-08-31"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byRange) != 2 {
		t.Errorf("date filter = %d, want 2", len(byRange))
	}

	n, err := repo.Count(ctx, Filter{Store: "COSTCO"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	limited, err := repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit/offset = %d, want 1", len(limited))
	}
}

func TestAnalyticsSummary(t *testing.T) {
	db := testDB(t)
	receipts := NewReceiptRepository(db, nil)
	analytics := NewAnalyticsRepository(db, nil)
	ctx := context.Background()

	for _, seed := range []struct {
		store string
		date  string
		total float64
	}{
		{"COSTCO", "2026-08-01", 10.00},
		{"COSTCO", "2026-08-15", 20.00},
		{"WALMART", "2026-07-01", 30.00},
	} {
		rec := &entity.Receipt{
			StoreName: seed.store,
			Date:      seed.date,
			Total:     money(seed.total),
			Items:     []entity.Item{},
		}
		if err := receipts.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	sum, err := analytics.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalReceipts != 3 {
		t.Errorf("total receipts = %d", sum.TotalReceipts)
	}
	if sum.TotalAmountSpent != 60.00 {
		t.Errorf("total spent = %v", sum.TotalAmountSpent)
	}
	if sum.AverageReceiptAmount != 20.00 {
		t.Errorf("average = %v", sum.AverageReceiptAmount)
	}
	if sum.EarliestDate != "2026-07-01" || sum.LatestDate != "2026-08-15" {
		t.Errorf("date range = %q..%q", sum.EarliestDate, sum.LatestDate)
	}
	if len(sum.TopStores) == 0 || sum.TopStores[0].StoreName != "COSTCO" {
		t.Errorf("top stores = %v", sum.TopStores)
	}
}

func TestAnalyticsEmpty(t *testing.T) {
	db := testDB(t)
	analytics := NewAnalyticsRepository(db, nil)

	sum, err := analytics.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalReceipts != 0 || sum.TotalAmountSpent != 0 {
		t.Errorf("empty store should report zeros: %+v", sum)
	}
}
