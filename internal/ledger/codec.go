package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/clweng/ledgerbot/internal/models"
)

// Encode serializes the whole store to its canonical JSON document:
// group ID -> {unpaid, paid, invoices} -> contributor -> ordered entry
// list. Amounts marshal as quoted decimal strings so the snapshot
// round-trips without precision loss; encoding/json sorts map keys, so
// equal stores produce identical bytes.
func (s *Store) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s.groups, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// Decode replaces the store's contents with the snapshot document.
func (s *Store) Decode(data []byte) error {
	groups := make(map[string]*models.GroupRecord)
	if err := json.Unmarshal(data, &groups); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}
	// A record serialized with an empty category omits nothing (the
	// three keys are always present), but guard against hand-edited
	// snapshots with missing maps.
	for _, rec := range groups {
		if rec.Unpaid == nil {
			rec.Unpaid = make(map[string][]models.Entry)
		}
		if rec.Paid == nil {
			rec.Paid = make(map[string][]models.Entry)
		}
		if rec.Invoices == nil {
			rec.Invoices = make(map[string][]models.Invoice)
		}
	}
	s.groups = groups
	return nil
}
