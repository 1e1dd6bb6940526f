package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is income or expense.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// UncategorizedLabel is the bucket for blank categories in category stats.
const UncategorizedLabel = "uncategorized"

type Transaction struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	ReceiptURL  *string         `json:"receipt_url,omitempty"`
	Category    *string         `json:"category,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionPatch is a partial update; nil fields are left unchanged.
type TransactionPatch struct {
	Type        *TransactionType
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
	ReceiptURL  *string
	Category    *string
}

// GroupStats are lifetime (or ranged) totals of a group.
type GroupStats struct {
	TotalIncome    decimal.Decimal `json:"totalIncome"`
	TotalExpense   decimal.Decimal `json:"totalExpense"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
}

// MonthlyStat is one calendar month bucket, Month formatted as YYYY-MM.
type MonthlyStat struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// CategoryStat totals one category; Total is income minus expense.
type CategoryStat struct {
	Category string          `json:"category"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Total    decimal.Decimal `json:"total"`
}

// DateRange is an inclusive range of calendar days. Zero values are open ends.
type DateRange struct {
	From time.Time
	To   time.Time
}
