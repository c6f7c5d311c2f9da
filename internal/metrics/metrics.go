// Package metrics exposes Prometheus collectors for the command and
// persistence paths. Collectors register on the default registry;
// cmd/server serves them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts executed command lines by verb and outcome.
	// Status is one of ok, not_found, error, unrecognized.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbot_commands_total",
		Help: "Command lines executed, by verb and status.",
	}, []string{"verb", "status"})

	// MessageDuration observes the full handle time of one inbound
	// message, including the persistence write.
	MessageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerbot_message_duration_seconds",
		Help:    "Time to parse, apply and persist one inbound message.",
		Buckets: prometheus.DefBuckets,
	})

	// PersistenceFailures counts failed primary snapshot writes.
	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerbot_persistence_failures_total",
		Help: "Failed writes of the durable ledger snapshot.",
	})

	// BackupFailures counts failed remote backup uploads.
	BackupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerbot_backup_failures_total",
		Help: "Failed uploads to the secondary backup target.",
	})
)
