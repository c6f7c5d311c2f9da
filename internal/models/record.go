package models

// Category names one of the three sub-ledgers a group owns.
type Category string

const (
	CategoryUnpaid   Category = "unpaid"
	CategoryPaid     Category = "paid"
	CategoryInvoices Category = "invoices"
)

// GroupRecord holds the three independent ledgers of one group, each
// keyed by contributor ID. Maps are created lazily by the ledger
// package; a nil map means no contributor has recorded anything yet.
type GroupRecord struct {
	Unpaid   map[string][]Entry   `json:"unpaid"`
	Paid     map[string][]Entry   `json:"paid"`
	Invoices map[string][]Invoice `json:"invoices"`
}

// NewGroupRecord returns an empty record with all three maps allocated.
func NewGroupRecord() *GroupRecord {
	return &GroupRecord{
		Unpaid:   make(map[string][]Entry),
		Paid:     make(map[string][]Entry),
		Invoices: make(map[string][]Invoice),
	}
}
