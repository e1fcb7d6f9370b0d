package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-coord-async/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	stepDurationSeconds    *prom.HistogramVec
	taskOutcomeTotal       *prom.CounterVec
	unhandledFailureTotal  *prom.CounterVec
	progressDeliveredTotal *prom.CounterVec
	taskPanicTotal         *prom.CounterVec
	taskRejectedTotal      *prom.CounterVec
	queueDepth             *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "coordasync"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	stepDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Background step execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"controller", "priority"})
	outcomeVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_outcome_total",
		Help:      "Total number of coordinated tasks per terminal outcome.",
	}, []string{"controller", "outcome"})
	unhandledVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "unhandled_failure_total",
		Help:      "Total number of failures delivered to the unhandled sink.",
	}, []string{"controller"})
	progressVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "progress_delivered_total",
		Help:      "Total number of progress values delivered to the coordination context.",
	}, []string{"controller"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"runner"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"runner", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current queue depth.",
	}, []string{"runner"})

	var err error
	if stepDurationVec, err = registerCollector(reg, stepDurationVec); err != nil {
		return nil, err
	}
	if outcomeVec, err = registerCollector(reg, outcomeVec); err != nil {
		return nil, err
	}
	if unhandledVec, err = registerCollector(reg, unhandledVec); err != nil {
		return nil, err
	}
	if progressVec, err = registerCollector(reg, progressVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		stepDurationSeconds:    stepDurationVec,
		taskOutcomeTotal:       outcomeVec,
		unhandledFailureTotal:  unhandledVec,
		progressDeliveredTotal: progressVec,
		taskPanicTotal:         panicVec,
		taskRejectedTotal:      rejectedVec,
		queueDepth:             queueDepthVec,
	}, nil
}

// RecordStepDuration records background step execution duration.
func (m *MetricsExporter) RecordStepDuration(runnerName string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDurationSeconds.WithLabelValues(normalizeLabel(runnerName, "unknown"), priority.String()).Observe(duration.Seconds())
}

// RecordTaskOutcome records one terminal task transition.
func (m *MetricsExporter) RecordTaskOutcome(runnerName string, outcome core.Outcome) {
	if m == nil {
		return
	}
	m.taskOutcomeTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), outcome.String()).Inc()
}

// RecordUnhandledFailure records one failure reaching the unhandled sink.
func (m *MetricsExporter) RecordUnhandledFailure(runnerName string) {
	if m == nil {
		return
	}
	m.unhandledFailureTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordProgressDelivered records one delivered progress value.
func (m *MetricsExporter) RecordProgressDelivered(runnerName string) {
	if m == nil {
		return
	}
	m.progressDeliveredTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
