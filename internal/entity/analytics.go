package entity

// StoreCount is a (store, receipt count) pair for analytics.
type StoreCount struct {
	StoreName string `json:"store_name"`
	Count     int    `json:"count"`
}

// Analytics summarizes all persisted receipts.
type Analytics struct {
	TotalReceipts        int          `json:"total_receipts"`
	TotalAmountSpent     float64      `json:"total_amount_spent"`
	AverageReceiptAmount float64      `json:"average_receipt_amount"`
	TopStores            []StoreCount `json:"top_stores"`
	EarliestDate         string       `json:"earliest_date,omitempty"`
	LatestDate           string       `json:"latest_date,omitempty"`
}
