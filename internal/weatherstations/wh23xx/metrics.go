package wh23xx

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts protocol activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands          *prometheus.CounterVec
	failedAttempts    *prometheus.CounterVec
	retriesExceeded   *prometheus.CounterVec
	noData            prometheus.Counter
	checksumMismatch  prometheus.Counter
	resets            *prometheus.CounterVec
	decodeErrors      prometheus.Counter
	reassemblyPackets prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wh23xx_commands_total",
			Help: "Command frames written to the console",
		}, []string{"command"}),
		failedAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wh23xx_failed_attempts_total",
			Help: "Attempts of read operations that failed and consumed retry budget",
		}, []string{"op"}),
		retriesExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wh23xx_retries_exceeded_total",
			Help: "Read operations that ran out of retries",
		}, []string{"op"}),
		noData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wh23xx_no_data_total",
			Help: "Transient empty reads",
		}),
		checksumMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wh23xx_checksum_mismatch_total",
			Help: "Replies whose checksum byte did not match",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wh23xx_resets_total",
			Help: "Device reset attempts by result",
		}, []string{"result"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wh23xx_decode_errors_total",
			Help: "Replies that could not be decoded",
		}),
		reassemblyPackets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wh23xx_reply_packets",
			Help:    "USB packets needed to reassemble one current-weather reply",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.commands, m.failedAttempts, m.retriesExceeded, m.noData,
			m.checksumMismatch, m.resets, m.decodeErrors, m.reassemblyPackets)
	}
	return m
}

func (m *Metrics) command(c Command) {
	if m != nil {
		m.commands.WithLabelValues(c.String()).Inc()
	}
}

func (m *Metrics) failedAttempt(op string) {
	if m != nil {
		m.failedAttempts.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) exhausted(op string) {
	if m != nil {
		m.retriesExceeded.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) emptyRead() {
	if m != nil {
		m.noData.Inc()
	}
}

func (m *Metrics) badChecksum() {
	if m != nil {
		m.checksumMismatch.Inc()
	}
}

func (m *Metrics) reset(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.resets.WithLabelValues("ok").Inc()
	} else {
		m.resets.WithLabelValues("failed").Inc()
	}
}

// DecodeError records a reply that failed to decode
func (m *Metrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) packets(n int) {
	if m != nil {
		m.reassemblyPackets.Observe(float64(n))
	}
}
