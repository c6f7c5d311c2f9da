package models

import "github.com/shopspring/decimal"

// Entry is one atomic record in the unpaid or paid ledger of a group.
type Entry struct {
	// Date is the normalized ISO date string (yyyy-mm-dd) the user
	// recorded the amount under. Stored verbatim once normalized;
	// deletes match on exact string equality.
	Date string `json:"date"`

	// Amount is the recorded amount. Negative amounts are valid and
	// represent corrections or refunds.
	Amount decimal.Decimal `json:"amount"`
}

// Invoice is one pending amount awaiting invoice issuance. Unlike
// Entry it carries a supplier name instead of a date.
type Invoice struct {
	// Amount is the pending amount.
	Amount decimal.Decimal `json:"amount"`

	// Supplier is the free-text supplier name. Together with Amount it
	// forms the exact-match key for deletes.
	Supplier string `json:"supplier"`
}
