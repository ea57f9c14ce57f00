package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PollCycles       prometheus.Counter
	MessagesFetched  prometheus.Counter
	TicketsCreated   prometheus.Counter
	RepliesAppended  prometheus.Counter
	IngestSkipped    prometheus.Counter
	IngestErrors     prometheus.Counter
	IngestDuplicates prometheus.Counter
	AckFailures      prometheus.Counter
	ProcessingTime   prometheus.Histogram
}

// NewMetrics creates metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics on the given registerer. Tests pass a
// fresh registry per instance to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_poll_cycles_total",
			Help: "Total number of mailbox poll cycles",
		}),
		MessagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_messages_fetched_total",
			Help: "Total number of raw messages fetched from the mailbox",
		}),
		TicketsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_tickets_created_total",
			Help: "Total number of tickets created by the ingestion pipeline",
		}),
		RepliesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_replies_appended_total",
			Help: "Total number of inbound messages appended to existing tickets",
		}),
		IngestSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_ingest_skipped_total",
			Help: "Total number of inbound messages skipped (blocked senders)",
		}),
		IngestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_ingest_errors_total",
			Help: "Total number of inbound messages that ended in error",
		}),
		IngestDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_ingest_duplicates_total",
			Help: "Total number of duplicate deliveries detected by the ledger",
		}),
		AckFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticketdesk_ack_failures_total",
			Help: "Total number of failed acknowledgement sends",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketdesk_processing_duration_seconds",
			Help:    "Time spent processing one poll cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
