package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records the engine's operational metrics.
type Collector struct {
	// Turn metrics
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	firstAudioLag  *prometheus.HistogramVec
	sessionsActive prometheus.Gauge

	// Interruption metrics
	interruptionsTotal *prometheus.CounterVec
	interruptionCutoff prometheus.Histogram

	// Handoff metrics
	handoffsTotal *prometheus.CounterVec

	// Pool metrics
	poolAcquisitionsTotal *prometheus.CounterVec
	poolExhaustedTotal    *prometheus.CounterVec
	poolWarmSize          *prometheus.GaugeVec
	poolAffinitySize      *prometheus.GaugeVec

	// Persistence metrics
	persistenceFailures *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg; a nil reg uses
// the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed user turns",
		},
		[]string{"agent", "mode", "status"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration from utterance to end of response",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	c.firstAudioLag = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_seconds",
			Help:      "Latency from end of utterance to first synthesized audio chunk",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	c.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of calls currently owned by this instance",
		},
	)

	c.interruptionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of interrupted turns",
		},
		[]string{"reason"},
	)

	c.interruptionCutoff = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interruption_cutoff_seconds",
			Help:      "Duration of synthesized speech cut off by an interruption",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
	)

	c.handoffsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of handoff attempts",
		},
		[]string{"source", "target", "status"},
	)

	c.poolAcquisitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquisitions_total",
			Help:      "Total number of pool acquisitions",
		},
		[]string{"kind", "tier"},
	)

	c.poolExhaustedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_exhausted_total",
			Help:      "Total number of acquisitions that found the pool exhausted",
		},
		[]string{"kind"},
	)

	c.poolWarmSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_warm_size",
			Help:      "Current size of the warm queue",
		},
		[]string{"kind"},
	)

	c.poolAffinitySize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_affinity_size",
			Help:      "Current size of the session-affinity cache",
		},
		[]string{"kind"},
	)

	c.persistenceFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Total number of failed session state saves",
		},
		[]string{"backend"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordTurn records a completed (or failed) turn.
func (c *Collector) RecordTurn(agent, mode, status string, duration time.Duration) {
	c.turnsTotal.WithLabelValues(agent, mode, status).Inc()
	c.turnDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordFirstAudio records the utterance-to-first-audio latency.
func (c *Collector) RecordFirstAudio(mode string, lag time.Duration) {
	c.firstAudioLag.WithLabelValues(mode).Observe(lag.Seconds())
}

// RecordSessionStart and RecordSessionEnd track the active-call gauge.
func (c *Collector) RecordSessionStart() { c.sessionsActive.Inc() }

// RecordSessionEnd decrements the active-call gauge.
func (c *Collector) RecordSessionEnd() { c.sessionsActive.Dec() }

// RecordInterruption records a barge-in or handoff interruption and the
// duration of speech that was cut off.
func (c *Collector) RecordInterruption(reason string, cutoff time.Duration) {
	c.interruptionsTotal.WithLabelValues(reason).Inc()
	c.interruptionCutoff.Observe(cutoff.Seconds())
}

// RecordHandoff records a handoff attempt outcome.
func (c *Collector) RecordHandoff(source, target, status string) {
	c.handoffsTotal.WithLabelValues(source, target, status).Inc()
}

// RecordPoolAcquisition records one acquisition by kind and tier.
func (c *Collector) RecordPoolAcquisition(kind, tier string) {
	c.poolAcquisitionsTotal.WithLabelValues(kind, tier).Inc()
}

// RecordPoolExhausted records one exhausted acquisition.
func (c *Collector) RecordPoolExhausted(kind string) {
	c.poolExhaustedTotal.WithLabelValues(kind).Inc()
}

// RecordPoolSizes updates the pool size gauges.
func (c *Collector) RecordPoolSizes(kind string, warm, affinity int) {
	c.poolWarmSize.WithLabelValues(kind).Set(float64(warm))
	c.poolAffinitySize.WithLabelValues(kind).Set(float64(affinity))
}

// RecordPersistenceFailure records a failed session save.
func (c *Collector) RecordPersistenceFailure(backend string) {
	c.persistenceFailures.WithLabelValues(backend).Inc()
}
