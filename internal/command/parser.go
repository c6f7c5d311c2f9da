package command

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// dateLayout is the only accepted input date form.
	dateLayout = "2006.01.02"
	// isoLayout is the normalized form entries are stored under.
	isoLayout = "2006-01-02"
)

var amountPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Line is one line of an inbound message after parsing: either a
// Command or a ParseError, never both.
type Line struct {
	Text string
	Cmd  Command
	Err  error
}

// Parse parses a single line. Unknown verbs yield a VerbNone command
// and no error; only known verbs with bad arguments produce errors.
func Parse(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Command{Verb: VerbNone, Raw: line}, nil
	}

	cmd := Command{Verb: Verb(tokens[0]), Raw: line}
	switch cmd.Verb {
	case VerbRecordAmount, VerbRecordRemittance:
		if len(tokens) != 3 {
			return Command{}, &ParseError{Err: ErrMalformed, Line: line}
		}
		date, err := parseDate(tokens[1])
		if err != nil {
			return Command{}, &ParseError{Err: ErrInvalidDate, Line: line}
		}
		amount, err := parseAmount(tokens[2])
		if err != nil {
			return Command{}, &ParseError{Err: ErrInvalidAmount, Line: line}
		}
		cmd.Date = date
		cmd.Amount = amount

	case VerbRecordInvoice:
		// Four tokens: verb, amount, a required separator token the
		// grammar ignores, then the supplier name.
		if len(tokens) != 4 {
			return Command{}, &ParseError{Err: ErrMalformed, Line: line}
		}
		amount, err := parseAmount(tokens[1])
		if err != nil {
			return Command{}, &ParseError{Err: ErrInvalidAmount, Line: line}
		}
		cmd.Amount = amount
		cmd.Supplier = tokens[3]

	case VerbDeleteAmount, VerbDeleteRemittance:
		if len(tokens) != 2 {
			return Command{}, &ParseError{Err: ErrMalformed, Line: line}
		}
		date, err := parseDate(tokens[1])
		if err != nil {
			return Command{}, &ParseError{Err: ErrInvalidDate, Line: line}
		}
		cmd.Date = date

	case VerbDeleteInvoice:
		// Mirrors record-invoice: the separator token is accepted but
		// optional, so both "delete-invoice $200 AcmeCorp" and the
		// four-token form match.
		if len(tokens) != 3 && len(tokens) != 4 {
			return Command{}, &ParseError{Err: ErrMalformed, Line: line}
		}
		amount, err := parseAmount(tokens[1])
		if err != nil {
			return Command{}, &ParseError{Err: ErrInvalidAmount, Line: line}
		}
		cmd.Amount = amount
		cmd.Supplier = tokens[len(tokens)-1]

	case VerbQueryTotal, VerbDeleteAll, VerbHelp:
		if len(tokens) != 1 {
			return Command{}, &ParseError{Err: ErrMalformed, Line: line}
		}

	default:
		cmd.Verb = VerbNone
	}

	return cmd, nil
}

// ParseMessage splits an inbound message on newlines and parses each
// non-blank line independently: one bad line never aborts the others.
// In a multi-line message only batchable verbs are accepted; a
// single-line-only verb appearing there is malformed.
func ParseMessage(text string) []Line {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, Line{Text: raw})
	}
	batch := len(lines) > 1
	for i := range lines {
		cmd, err := Parse(lines[i].Text)
		if err == nil && batch && cmd.Verb != VerbNone && !cmd.Batchable() {
			err = &ParseError{Err: ErrMalformed, Line: lines[i].Text}
		}
		lines[i].Cmd = cmd
		lines[i].Err = err
	}
	return lines
}

// parseAmount strips currency glyphs and validates the remainder
// before handing it to the decimal parser.
func parseAmount(token string) (decimal.Decimal, error) {
	s := strings.TrimSpace(token)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "＄")
	if !amountPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}

// parseDate validates the yyyy.mm.dd token as a real calendar date and
// returns it normalized to ISO form.
func parseDate(token string) (string, error) {
	t, err := time.Parse(dateLayout, token)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(isoLayout), nil
}
