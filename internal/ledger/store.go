// Package ledger implements the in-memory record store: every group's
// unpaid, paid and invoice ledgers, plus the aggregation used by
// reports. The store does no I/O and no locking; the engine serializes
// access and hands snapshots to the storage layer.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/clweng/ledgerbot/internal/models"
)

// Store is the process-wide ledger state, keyed by group ID. A group
// record is created lazily by the first mutating command that targets
// it; queries never create one.
type Store struct {
	groups map[string]*models.GroupRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{groups: make(map[string]*models.GroupRecord)}
}

// Group returns the record for a group, or false if the group has
// never been written to.
func (s *Store) Group(groupID string) (*models.GroupRecord, bool) {
	rec, ok := s.groups[groupID]
	return rec, ok
}

// ensure returns the group record, creating it if absent. Only
// mutating operations call this.
func (s *Store) ensure(groupID string) *models.GroupRecord {
	rec, ok := s.groups[groupID]
	if !ok {
		rec = models.NewGroupRecord()
		s.groups[groupID] = rec
	}
	return rec
}

// AddEntry appends a dated entry to the unpaid or paid ledger of the
// contributor. Category must be CategoryUnpaid or CategoryPaid.
func (s *Store) AddEntry(groupID, userID string, cat models.Category, e models.Entry) {
	rec := s.ensure(groupID)
	switch cat {
	case models.CategoryUnpaid:
		rec.Unpaid[userID] = append(rec.Unpaid[userID], e)
	case models.CategoryPaid:
		rec.Paid[userID] = append(rec.Paid[userID], e)
	}
}

// AddInvoice appends a pending invoice to the contributor's invoice
// ledger.
func (s *Store) AddInvoice(groupID, userID string, inv models.Invoice) {
	rec := s.ensure(groupID)
	rec.Invoices[userID] = append(rec.Invoices[userID], inv)
}

// DeleteEntries removes every entry with exactly the given date from
// the contributor's unpaid or paid ledger and returns how many were
// removed. Two entries recorded with the same date are
// indistinguishable, so one delete removes them all.
func (s *Store) DeleteEntries(groupID, userID string, cat models.Category, date string) int {
	rec, ok := s.groups[groupID]
	if !ok {
		return 0
	}
	var m map[string][]models.Entry
	switch cat {
	case models.CategoryUnpaid:
		m = rec.Unpaid
	case models.CategoryPaid:
		m = rec.Paid
	default:
		return 0
	}
	kept := m[userID][:0]
	removed := 0
	for _, e := range m[userID] {
		if e.Date == date {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(m, userID)
	} else {
		m[userID] = kept
	}
	return removed
}

// DeleteInvoices removes every invoice matching the exact
// amount+supplier pair from the contributor's invoice ledger and
// returns how many were removed.
func (s *Store) DeleteInvoices(groupID, userID string, amount decimal.Decimal, supplier string) int {
	rec, ok := s.groups[groupID]
	if !ok {
		return 0
	}
	kept := rec.Invoices[userID][:0]
	removed := 0
	for _, inv := range rec.Invoices[userID] {
		if inv.Supplier == supplier && inv.Amount.Equal(amount) {
			removed++
			continue
		}
		kept = append(kept, inv)
	}
	if len(kept) == 0 {
		delete(rec.Invoices, userID)
	} else {
		rec.Invoices[userID] = kept
	}
	return removed
}

// Clear removes the group's entire record. Clearing an absent group is
// a no-op; the bool reports whether a record existed.
func (s *Store) Clear(groupID string) bool {
	_, ok := s.groups[groupID]
	delete(s.groups, groupID)
	return ok
}

// Item is one ledger entry paired with the contributor who recorded it,
// as rendered in itemized reports.
type Item struct {
	Contributor string
	Entry       models.Entry
}

// InvoiceItem is one pending invoice paired with its contributor.
type InvoiceItem struct {
	Contributor string
	Invoice     models.Invoice
}

// Items returns the group's unpaid or paid entries across all
// contributors. Contributors are ordered by ID for stable output; each
// contributor's entries keep insertion order.
func (s *Store) Items(groupID string, cat models.Category) []Item {
	rec, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	var m map[string][]models.Entry
	switch cat {
	case models.CategoryUnpaid:
		m = rec.Unpaid
	case models.CategoryPaid:
		m = rec.Paid
	default:
		return nil
	}
	var items []Item
	for _, user := range sortedKeys(m) {
		for _, e := range m[user] {
			items = append(items, Item{Contributor: user, Entry: e})
		}
	}
	return items
}

// InvoiceItems returns the group's pending invoices across all
// contributors, contributor-ordered, insertion order within each.
func (s *Store) InvoiceItems(groupID string) []InvoiceItem {
	rec, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	var items []InvoiceItem
	for _, user := range sortedKeys(rec.Invoices) {
		for _, inv := range rec.Invoices[user] {
			items = append(items, InvoiceItem{Contributor: user, Invoice: inv})
		}
	}
	return items
}

// Total sums one category across all contributors of the group. An
// absent group totals to zero.
func (s *Store) Total(groupID string, cat models.Category) decimal.Decimal {
	total := decimal.Zero
	if cat == models.CategoryInvoices {
		for _, item := range s.InvoiceItems(groupID) {
			total = total.Add(item.Invoice.Amount)
		}
		return total
	}
	for _, item := range s.Items(groupID, cat) {
		total = total.Add(item.Entry.Amount)
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
