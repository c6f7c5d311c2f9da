// Package engine applies parsed commands to the ledger and owns the
// critical section: one inbound message is parsed, applied and
// persisted as a single indivisible step relative to any other message.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clweng/ledgerbot/internal/command"
	"github.com/clweng/ledgerbot/internal/ledger"
	"github.com/clweng/ledgerbot/internal/metrics"
	"github.com/clweng/ledgerbot/internal/models"
	"github.com/clweng/ledgerbot/internal/report"
	"github.com/clweng/ledgerbot/internal/storage"
)

// Replicator propagates snapshots to the secondary backup target.
// Failures are logged and swallowed; they never reach users.
type Replicator interface {
	Upload(ctx context.Context, snapshot []byte) error
}

// Engine executes command batches against the ledger.
type Engine struct {
	mu    sync.Mutex
	store *ledger.Store
	snaps storage.SnapshotStore
	rep   Replicator // nil when replication is disabled

	// echoUnrecognized restores the legacy echo-back behavior for
	// text that matches no verb. Default is silence.
	echoUnrecognized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithReplicator attaches a secondary backup target.
func WithReplicator(r Replicator) Option {
	return func(e *Engine) { e.rep = r }
}

// WithEchoUnrecognized makes unrecognized text echo back verbatim.
func WithEchoUnrecognized() Option {
	return func(e *Engine) { e.echoUnrecognized = true }
}

// New creates an engine over the given ledger and snapshot store.
func New(store *ledger.Store, snaps storage.SnapshotStore, opts ...Option) *Engine {
	e := &Engine{store: store, snaps: snaps}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore loads the latest durable snapshot into the ledger. An empty
// store is not an error; a corrupt snapshot is.
func (e *Engine) Restore(ctx context.Context) error {
	data, err := e.snaps.Load(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		slog.Info("No snapshot found, starting with empty ledger")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := e.store.Decode(data); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	slog.Info("Ledger restored from snapshot", "bytes", len(data))
	return nil
}

// Handle runs one inbound message for the given group and user and
// returns the reply text. ok=false means no reply is sent. An empty
// groupID scopes the commands to the user's personal ledger.
//
// A batch never aborts part-way: every line is attempted, and the
// reply reports either the lines that produced results or, when none
// did, the lines that failed.
func (e *Engine) Handle(ctx context.Context, groupID, userID, text string) (reply string, ok bool) {
	timer := prometheus.NewTimer(metrics.MessageDuration)
	defer timer.ObserveDuration()

	// Whatever breaks inside execution, the user gets the generic
	// failure message, never internal detail.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling message", "panic", r, "group", groupID, "user", userID)
			reply, ok = report.Failure(), true
		}
	}()

	lines := command.ParseMessage(text)
	if len(lines) == 0 {
		return "", false
	}

	scope := groupID
	if scope == "" {
		scope = userID
	}

	results, failures, tail, snapshot, persistFailed := e.run(ctx, scope, userID, lines)

	if snapshot != nil && e.rep != nil {
		go e.replicate(snapshot)
	}

	// The in-memory mutation is kept even when the durable write
	// failed; the store converges on the next successful write.
	if persistFailed {
		return report.Failure(), true
	}

	switch {
	case len(results) > 0:
		reply = strings.Join(results, "\n")
		if len(tail) > 0 {
			reply += "\n\n" + strings.Join(tail, "\n\n")
		}
		return reply, true
	case len(failures) > 0:
		return strings.Join(failures, "\n"), true
	case e.echoUnrecognized:
		return text, true
	default:
		return "", false
	}
}

// run is the critical section: it applies every parsed line, writes
// the durable snapshot if anything mutated, and renders the trailing
// consolidated report while the state is still locked, so the report
// and the snapshot always match.
func (e *Engine) run(ctx context.Context, scope, userID string, lines []command.Line) (results, failures, tail []string, snapshot []byte, persistFailed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	affected := map[models.Category]bool{}
	mutated := false

	for _, line := range lines {
		if line.Err != nil {
			metrics.CommandsTotal.WithLabelValues(verbLabel(line.Cmd.Verb), "error").Inc()
			failures = append(failures, report.ParseFailure(line.Err, line.Text))
			continue
		}
		if line.Cmd.Verb == command.VerbNone {
			metrics.CommandsTotal.WithLabelValues("none", "unrecognized").Inc()
			continue
		}
		res := e.apply(scope, userID, line.Cmd)
		metrics.CommandsTotal.WithLabelValues(verbLabel(line.Cmd.Verb), res.status).Inc()
		results = append(results, res.message)
		if res.mutated {
			mutated = true
			if res.category != "" {
				affected[res.category] = true
			}
		}
	}

	if mutated {
		data, err := e.store.Encode()
		if err == nil {
			err = e.snaps.Save(ctx, data)
		}
		if err != nil {
			persistFailed = true
			metrics.PersistenceFailures.Inc()
			slog.Error("Snapshot write failed", "group", scope, "error", err)
		} else {
			snapshot = data
		}
	}

	for _, cat := range []models.Category{models.CategoryUnpaid, models.CategoryPaid, models.CategoryInvoices} {
		if affected[cat] {
			tail = append(tail, report.Section(e.store, scope, cat))
		}
	}

	return results, failures, tail, snapshot, persistFailed
}

// result is the outcome of one applied line.
type result struct {
	message  string
	status   string // ok, not_found, empty
	mutated  bool
	category models.Category // set when a category's report should follow
}

// apply executes one parsed command against the ledger. Caller holds
// e.mu. Parsing has already succeeded, so record verbs cannot fail.
func (e *Engine) apply(scope, userID string, cmd command.Command) result {
	switch cmd.Verb {
	case command.VerbRecordAmount:
		e.store.AddEntry(scope, userID, models.CategoryUnpaid, models.Entry{Date: cmd.Date, Amount: cmd.Amount})
		return result{
			message:  report.Recorded(models.CategoryUnpaid, cmd.Date, cmd.Amount, ""),
			status:   "ok",
			mutated:  true,
			category: models.CategoryUnpaid,
		}

	case command.VerbRecordRemittance:
		e.store.AddEntry(scope, userID, models.CategoryPaid, models.Entry{Date: cmd.Date, Amount: cmd.Amount})
		return result{
			message:  report.Recorded(models.CategoryPaid, cmd.Date, cmd.Amount, ""),
			status:   "ok",
			mutated:  true,
			category: models.CategoryPaid,
		}

	case command.VerbRecordInvoice:
		e.store.AddInvoice(scope, userID, models.Invoice{Amount: cmd.Amount, Supplier: cmd.Supplier})
		return result{
			message:  report.Recorded(models.CategoryInvoices, "", cmd.Amount, cmd.Supplier),
			status:   "ok",
			mutated:  true,
			category: models.CategoryInvoices,
		}

	case command.VerbDeleteAmount, command.VerbDeleteRemittance:
		cat := models.CategoryUnpaid
		if cmd.Verb == command.VerbDeleteRemittance {
			cat = models.CategoryPaid
		}
		n := e.store.DeleteEntries(scope, userID, cat, cmd.Date)
		if n == 0 {
			return result{message: report.NotFound(cat, cmd.Date, cmd.Amount, ""), status: "not_found"}
		}
		return result{
			message:  report.Deleted(cat, cmd.Date, cmd.Amount, "", n),
			status:   "ok",
			mutated:  true,
			category: cat,
		}

	case command.VerbDeleteInvoice:
		n := e.store.DeleteInvoices(scope, userID, cmd.Amount, cmd.Supplier)
		if n == 0 {
			return result{message: report.NotFound(models.CategoryInvoices, "", cmd.Amount, cmd.Supplier), status: "not_found"}
		}
		return result{
			message:  report.Deleted(models.CategoryInvoices, "", cmd.Amount, cmd.Supplier, n),
			status:   "ok",
			mutated:  true,
			category: models.CategoryInvoices,
		}

	case command.VerbDeleteAll:
		existed := e.store.Clear(scope)
		return result{message: report.Cleared(), status: "ok", mutated: existed}

	case command.VerbQueryTotal:
		if _, ok := e.store.Group(scope); !ok {
			return result{message: report.EmptyLedger(), status: "empty"}
		}
		return result{message: report.QueryReport(e.store, scope), status: "ok"}

	case command.VerbHelp:
		return result{message: report.Help(), status: "ok"}
	}

	// Unreachable: VerbNone is filtered by the caller.
	return result{message: report.Failure(), status: "error"}
}

// replicate pushes one snapshot to the backup target off the hot path.
func (e *Engine) replicate(snapshot []byte) {
	if err := e.rep.Upload(context.Background(), snapshot); err != nil {
		metrics.BackupFailures.Inc()
		slog.Warn("Backup upload failed", "error", err)
	}
}

func verbLabel(v command.Verb) string {
	if v == command.VerbNone {
		return "none"
	}
	return string(v)
}
