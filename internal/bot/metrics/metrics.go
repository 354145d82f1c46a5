// Package metrics defines the Prometheus instruments for the bot's update
// pipeline. All collectors are registered on the default registry via
// promauto and exposed by the ops server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleetbot"

var (
	// UpdatesTotal counts processed updates by kind: command, flow_text or
	// callback.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Total number of processed Telegram updates.",
	}, []string{"kind"})

	// UpdateErrorsTotal counts updates whose handling ended in an error the
	// user was not responsible for.
	UpdateErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "update_errors_total",
		Help:      "Total number of updates that failed during handling.",
	}, []string{"kind"})

	// NotifyFailuresTotal counts outbound notifications that could not be
	// delivered. Delivery failures never fail the triggering operation.
	NotifyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_failures_total",
		Help:      "Total number of undeliverable notifications.",
	}, []string{"event"})

	// HandleDuration observes end-to-end handling latency per update kind.
	HandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling a single update.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// QueueDepth tracks the number of updates waiting in each worker queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Pending updates per dispatcher worker.",
	}, []string{"worker"})
)
