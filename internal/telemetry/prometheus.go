package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "summbench"

// Metrics exposes Prometheus collectors that report benchmark activity.
type Metrics struct {
	llmCalls      *prometheus.CounterVec
	llmRetries    *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	tokens        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	records       *prometheus.CounterVec
	quality       *prometheus.HistogramVec
	samplesActive prometheus.Gauge
	samplesDone   *prometheus.CounterVec
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors already registered under the same name are reused, so several
// runs inside one process share a single set of series. Any other
// registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "LLM calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Rate-limit retries by provider.",
		}, []string{"provider"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of single LLM attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by direction.",
		}, []string{"direction"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Result records emitted by strategy and final verdict.",
		}, []string{"strategy", "verdict", "refined"}),
		quality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "quality_score",
			Help:      "Composite quality score distribution.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}, []string{"strategy"}),
		samplesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "samples_active",
			Help:      "Samples currently holding an admission slot.",
		}),
		samplesDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "samples_total",
			Help:      "Samples finished by outcome.",
		}, []string{"outcome"}),
	}

	m.llmCalls = register(reg, m.llmCalls)
	m.llmRetries = register(reg, m.llmRetries)
	m.llmDuration = register(reg, m.llmDuration)
	m.tokens = register(reg, m.tokens)
	m.stageDuration = register(reg, m.stageDuration)
	m.records = register(reg, m.records)
	m.quality = register(reg, m.quality)
	m.samplesActive = register(reg, m.samplesActive)
	m.samplesDone = register(reg, m.samplesDone)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveCall records a single LLM attempt.
func (m *Metrics) ObserveCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, outcome).Inc()
	m.llmDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncRetry counts a rate-limit retry.
func (m *Metrics) IncRetry(provider string) {
	if m == nil {
		return
	}
	m.llmRetries.WithLabelValues(provider).Inc()
}

// AddTokens counts consumed tokens.
func (m *Metrics) AddTokens(input, output int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues("input").Add(float64(input))
	m.tokens.WithLabelValues("output").Add(float64(output))
}

// ObserveStage records the time spent in a pipeline stage.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// ObserveRecord counts an emitted record and its quality score.
func (m *Metrics) ObserveRecord(strategy, verdict string, refined bool, quality float64) {
	if m == nil {
		return
	}
	r := "false"
	if refined {
		r = "true"
	}
	m.records.WithLabelValues(strategy, verdict, r).Inc()
	m.quality.WithLabelValues(strategy).Observe(quality)
}

// SampleStarted marks a sample as holding an admission slot.
func (m *Metrics) SampleStarted() {
	if m == nil {
		return
	}
	m.samplesActive.Inc()
}

// SampleFinished releases the slot and counts the outcome.
func (m *Metrics) SampleFinished(outcome string) {
	if m == nil {
		return
	}
	m.samplesActive.Dec()
	m.samplesDone.WithLabelValues(outcome).Inc()
}
