package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hislip holds every counter/gauge/histogram the server records. A nil
// *Hislip is valid and every method on it is a no-op, so call sites never
// need to check whether metrics are enabled.
type Hislip struct {
	sessionsActive   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	messagesTotal    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lockWaitSeconds  prometheus.Histogram
	lockContentions  prometheus.Counter
	dataBytesTotal   *prometheus.CounterVec
}

// NewHislip registers and returns the server's metric set. Returns nil if
// metrics are not enabled (Init(false) or never called).
func NewHislip() *Hislip {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &Hislip{
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hislip_sessions_active",
			Help: "Number of HiSLIP sessions currently established.",
		}),
		sessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hislip_sessions_total",
			Help: "Total number of HiSLIP sessions established since start.",
		}),
		messagesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hislip_messages_total",
			Help: "Total messages processed, by channel and message type.",
		}, []string{"channel", "type"}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hislip_errors_total",
			Help: "Total Error/FatalError replies sent, by channel and code.",
		}, []string{"channel", "kind"}),
		lockWaitSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hislip_lock_wait_seconds",
			Help:    "Time spent waiting for shared-lock admission.",
			Buckets: prometheus.DefBuckets,
		}),
		lockContentions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hislip_lock_contentions_total",
			Help: "Total lock acquisitions that had to wait for another holder.",
		}),
		dataBytesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hislip_data_bytes_total",
			Help: "Total payload bytes transferred, by direction.",
		}, []string{"direction"}),
	}
}

func (m *Hislip) SessionEstablished() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Hislip) SessionDestroyed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Hislip) MessageProcessed(channel, messageType string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, messageType).Inc()
}

func (m *Hislip) ErrorSent(channel, kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(channel, kind).Inc()
}

func (m *Hislip) ObserveLockWait(seconds float64, contended bool) {
	if m == nil {
		return
	}
	m.lockWaitSeconds.Observe(seconds)
	if contended {
		m.lockContentions.Inc()
	}
}

func (m *Hislip) DataBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dataBytesTotal.WithLabelValues(direction).Add(float64(n))
}
