// Package report renders command results and ledger totals into the
// reply text users see. All money is rendered with a $ prefix and the
// stored decimal precision, never re-rounded.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clweng/ledgerbot/internal/command"
	"github.com/clweng/ledgerbot/internal/ledger"
	"github.com/clweng/ledgerbot/internal/models"
)

// ParseFailure renders the per-line message for a line that failed to
// parse. These appear in the reply only when no line in the batch
// produced a result.
func ParseFailure(err error, line string) string {
	switch {
	case errors.Is(err, command.ErrInvalidAmount):
		return fmt.Sprintf("Invalid amount: %s", strings.TrimSpace(line))
	case errors.Is(err, command.ErrInvalidDate):
		return fmt.Sprintf("Invalid date: %s", strings.TrimSpace(line))
	default:
		return fmt.Sprintf("Cannot parse: %s", strings.TrimSpace(line))
	}
}

// Money renders an amount as it appears in every reply.
func Money(d decimal.Decimal) string {
	return "$" + d.String()
}

// sectionTitle maps a category to its reply heading.
func sectionTitle(cat models.Category) string {
	switch cat {
	case models.CategoryUnpaid:
		return "Unpaid"
	case models.CategoryPaid:
		return "Paid"
	case models.CategoryInvoices:
		return "Invoices"
	}
	return string(cat)
}

// Recorded is the per-line success message for the record verbs.
func Recorded(cat models.Category, date string, amount decimal.Decimal, supplier string) string {
	if cat == models.CategoryInvoices {
		return fmt.Sprintf("Recorded invoice %s (%s)", Money(amount), supplier)
	}
	return fmt.Sprintf("Recorded %s %s %s", strings.ToLower(sectionTitle(cat)), date, Money(amount))
}

// Deleted is the per-line success message for the delete verbs.
func Deleted(cat models.Category, date string, amount decimal.Decimal, supplier string, n int) string {
	if cat == models.CategoryInvoices {
		noun := "invoice"
		if n != 1 {
			noun = "invoices"
		}
		return fmt.Sprintf("Deleted %d %s %s (%s)", n, noun, Money(amount), supplier)
	}
	noun := "entry"
	if n != 1 {
		noun = "entries"
	}
	return fmt.Sprintf("Deleted %d %s %s for %s", n, strings.ToLower(sectionTitle(cat)), noun, date)
}

// NotFound is the negative (but non-error) reply for a delete whose
// target does not exist.
func NotFound(cat models.Category, date string, amount decimal.Decimal, supplier string) string {
	if cat == models.CategoryInvoices {
		return fmt.Sprintf("No invoice %s (%s) found", Money(amount), supplier)
	}
	return fmt.Sprintf("No %s entries found for %s", strings.ToLower(sectionTitle(cat)), date)
}

// Cleared is the reply for delete-all.
func Cleared() string {
	return "All records for this group have been deleted."
}

// EmptyLedger is the reply for a query against a group with no records.
func EmptyLedger() string {
	return "No records for this group yet."
}

// Failure is the only message shown when something goes wrong
// internally; users never see raw error detail.
func Failure() string {
	return "Something went wrong while saving. Please try again later."
}

// Section renders one category of a group: a subtotal line followed by
// itemized lines in ledger insertion order, or a no-entries line.
func Section(store *ledger.Store, groupID string, cat models.Category) string {
	title := sectionTitle(cat)
	var lines []string
	if cat == models.CategoryInvoices {
		for _, item := range store.InvoiceItems(groupID) {
			lines = append(lines, fmt.Sprintf("%s %s (%s)", item.Contributor, Money(item.Invoice.Amount), item.Invoice.Supplier))
		}
	} else {
		for _, item := range store.Items(groupID, cat) {
			lines = append(lines, fmt.Sprintf("%s %s %s", item.Contributor, item.Entry.Date, Money(item.Entry.Amount)))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("%s: no entries", title)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s total: %s", title, Money(store.Total(groupID, cat)))
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}

// QueryReport renders the full three-section report in fixed order:
// unpaid, paid, invoices.
func QueryReport(store *ledger.Store, groupID string) string {
	sections := []string{
		Section(store, groupID, models.CategoryUnpaid),
		Section(store, groupID, models.CategoryPaid),
		Section(store, groupID, models.CategoryInvoices),
	}
	return strings.Join(sections, "\n\n")
}

// Help is the command reference text.
func Help() string {
	return strings.TrimSpace(`
Commands (one per line, dates as yyyy.mm.dd):
record-amount <date> <amount>        add an unpaid amount
record-remittance <date> <amount>    add a paid amount
record-invoice <amount> for <supplier>  add a pending invoice
query-total                          show totals and entries
delete-amount <date>                 delete unpaid entries for a date
delete-remittance <date>             delete paid entries for a date
delete-invoice <amount> <supplier>   delete matching invoices
delete-all                           delete this group's records
help                                 show this text
`)
}
