// Package command parses one line of chat text into a typed Command.
// The grammar is a fixed verb set with whitespace-delimited tokens;
// anything that doesn't start with a known verb is Unrecognized, which
// is a result, not an error.
package command

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Verb is one of the fixed command verbs.
type Verb string

const (
	// VerbNone marks text that matched no verb. The engine decides
	// whether that means silence or an echo.
	VerbNone Verb = ""

	VerbRecordAmount     Verb = "record-amount"
	VerbRecordRemittance Verb = "record-remittance"
	VerbRecordInvoice    Verb = "record-invoice"
	VerbQueryTotal       Verb = "query-total"
	VerbDeleteAmount     Verb = "delete-amount"
	VerbDeleteRemittance Verb = "delete-remittance"
	VerbDeleteInvoice    Verb = "delete-invoice"
	VerbDeleteAll        Verb = "delete-all"
	VerbHelp             Verb = "help"
)

// Command is one parsed line. Only the fields the verb uses are set.
type Command struct {
	Verb     Verb
	Date     string          // normalized yyyy-mm-dd; record/delete amount and remittance
	Amount   decimal.Decimal // record/delete verbs except delete-amount/-remittance
	Supplier string          // invoice verbs
	Raw      string          // the original line, verbatim
}

// Mutates reports whether executing the command can change the ledger.
func (c Command) Mutates() bool {
	switch c.Verb {
	case VerbRecordAmount, VerbRecordRemittance, VerbRecordInvoice,
		VerbDeleteAmount, VerbDeleteRemittance, VerbDeleteInvoice, VerbDeleteAll:
		return true
	}
	return false
}

// Batchable reports whether the verb may appear in a multi-line
// message. Query, delete-all and help are single-line only.
func (c Command) Batchable() bool {
	switch c.Verb {
	case VerbRecordAmount, VerbRecordRemittance, VerbRecordInvoice,
		VerbDeleteAmount, VerbDeleteRemittance, VerbDeleteInvoice:
		return true
	}
	return false
}

// Sentinel parse failures. A ParseError wraps one of these so callers
// can branch with errors.Is.
var (
	ErrMalformed     = errors.New("malformed command")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ParseError is a per-line parse failure carrying the offending line.
type ParseError struct {
	Err  error // one of the sentinels above
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }
