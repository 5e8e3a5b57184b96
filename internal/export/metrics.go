package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors export counters into Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs               *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	archiveBytes       prometheus.Histogram
	documents          prometheus.Counter
	skipped            prometheus.Counter
	attachments        prometheus.Counter
	attachmentBytes    prometheus.Counter
	attachmentFailures prometheus.Counter
}

// NewMetrics registers export metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbexport_runs_total",
			Help: "Export runs by format and result",
		}, []string{"format", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kbexport_run_duration_seconds",
			Help:    "Export run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"format"}),
		archiveBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbexport_archive_bytes",
			Help:    "Size of finalized archives in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to ~256GiB
		}),
		documents: f.NewCounter(prometheus.CounterOpts{
			Name: "kbexport_documents_total",
			Help: "Documents written into archives",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "kbexport_documents_skipped_total",
			Help: "Hierarchy nodes whose document did not resolve",
		}),
		attachments: f.NewCounter(prometheus.CounterOpts{
			Name: "kbexport_attachments_total",
			Help: "Attachments written into archives",
		}),
		attachmentBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "kbexport_attachment_bytes_total",
			Help: "Attachment bytes written into archives",
		}),
		attachmentFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "kbexport_attachment_failures_total",
			Help: "Attachment fetches that failed and were omitted",
		}),
	}
}

func (m *Metrics) documentExported() {
	if m != nil {
		m.documents.Inc()
	}
}

func (m *Metrics) documentSkipped() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) attachmentArchived(size int) {
	if m != nil {
		m.attachments.Inc()
		m.attachmentBytes.Add(float64(size))
	}
}

func (m *Metrics) attachmentFailed() {
	if m != nil {
		m.attachmentFailures.Inc()
	}
}

func (m *Metrics) runFinished(format Format, stats Stats, size int64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(string(format), result).Inc()
	m.duration.WithLabelValues(string(format)).Observe(stats.Duration.Seconds())
	if err == nil {
		m.archiveBytes.Observe(float64(size))
	}
}
