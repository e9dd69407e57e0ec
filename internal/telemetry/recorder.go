package telemetry

import (
	"time"
)

// Call outcomes and sample outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePanic   = "panic"
)

// Recorder writes benchmark events to the in-process collector and, when
// configured, to Prometheus. A nil *Recorder discards everything.
type Recorder struct {
	collector *MetricsCollector
	prom      *Metrics
}

// NewRecorder creates a Recorder. Either argument may be nil.
func NewRecorder(collector *MetricsCollector, prom *Metrics) *Recorder {
	return &Recorder{collector: collector, prom: prom}
}

// Collector returns the in-process collector, if any.
func (r *Recorder) Collector() *MetricsCollector {
	if r == nil {
		return nil
	}
	return r.collector
}

// LLMCall records one provider attempt.
func (r *Recorder) LLMCall(provider string, err error, d time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	if r.collector != nil {
		r.collector.IncrementCounter(MetricLLMCalls, 1)
		if err != nil {
			r.collector.IncrementCounter(MetricLLMFailures, 1)
		}
		r.collector.RecordTimer(MetricLLMResponseTime, d)
		r.collector.RecordTimestamp(MetricLLMCalls)
	}
	r.prom.ObserveCall(provider, outcome, d)
}

// Retry records a backoff before another attempt.
func (r *Recorder) Retry(provider string) {
	if r == nil {
		return
	}
	if r.collector != nil {
		r.collector.IncrementCounter(MetricLLMRetries, 1)
	}
	r.prom.IncRetry(provider)
}

// Count increments a collector-only counter.
func (r *Recorder) Count(name string) {
	if r == nil || r.collector == nil {
		return
	}
	r.collector.IncrementCounter(name, 1)
}

// Tokens records consumed tokens.
func (r *Recorder) Tokens(input, output int) {
	if r == nil {
		return
	}
	if r.collector != nil {
		r.collector.IncrementCounter(MetricTokensInput, int64(input))
		r.collector.IncrementCounter(MetricTokensOutput, int64(output))
	}
	r.prom.AddTokens(input, output)
}

// Stage records the duration of one pipeline stage.
func (r *Recorder) Stage(stage string, err error, d time.Duration) {
	if r == nil {
		return
	}
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeFailure
	}
	if r.collector != nil {
		r.collector.RecordTimer(MetricStagePrefix+stage, d)
	}
	r.prom.ObserveStage(stage, status, d)
}

// Record counts an emitted result record.
func (r *Recorder) Record(strategy string, passed, refined bool, quality float64) {
	if r == nil {
		return
	}
	verdict := "FAIL"
	if passed {
		verdict = "PASS"
	}
	if r.collector != nil {
		r.collector.IncrementCounter(MetricRecords, 1)
		if passed {
			r.collector.IncrementCounter(MetricJudgePass, 1)
		} else {
			r.collector.IncrementCounter(MetricJudgeFail, 1)
		}
		if refined {
			r.collector.IncrementCounter(MetricRefinements, 1)
		}
	}
	r.prom.ObserveRecord(strategy, verdict, refined, quality)
}

// SampleStarted marks a sample as admitted.
func (r *Recorder) SampleStarted() {
	if r == nil {
		return
	}
	if r.collector != nil {
		r.collector.AddGauge(MetricSamplesActive, 1)
	}
	r.prom.SampleStarted()
}

// SampleFinished releases an admitted sample.
func (r *Recorder) SampleFinished(outcome string) {
	if r == nil {
		return
	}
	if r.collector != nil {
		r.collector.AddGauge(MetricSamplesActive, -1)
		if outcome == OutcomeSuccess {
			r.collector.IncrementCounter(MetricSamplesCompleted, 1)
		} else {
			r.collector.IncrementCounter(MetricSamplesFailed, 1)
		}
	}
	r.prom.SampleFinished(outcome)
}
