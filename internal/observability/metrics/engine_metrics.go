package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics tracks realtime-engine operations: mixer callback duration,
// command-queue depth, and xrun occurrences. It satisfies Recorder so
// callers can swap it for a TestRecorder/NoOpRecorder in tests.
type EngineMetrics struct {
	operationsTotal *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec

	callbackDuration prometheus.Histogram
	commandQueueDepth prometheus.Gauge
	xrunsTotal        prometheus.Counter
}

// NewEngineMetrics registers engine metrics on the given registry.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total engine operations by name and status.",
		}, []string{"operation", "status"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "operation_errors_total",
			Help:      "Total engine operation errors by name and error type.",
		}, []string{"operation", "error_type"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		callbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "callback_duration_seconds",
			Help:      "Duration of each audio-thread render callback.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		commandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "command_queue_depth",
			Help:      "Number of commands currently queued for the next audio block.",
		}),
		xrunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "engine",
			Name:      "xruns_total",
			Help:      "Total buffer underrun/overrun events observed by the audio callback.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.operationsTotal, m.operationErrors, m.durationSeconds,
		m.callbackDuration, m.commandQueueDepth, m.xrunsTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordOperation implements Recorder.
func (m *EngineMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *EngineMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *EngineMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordCallback records the wall-clock duration of one render callback.
func (m *EngineMetrics) RecordCallback(seconds float64) {
	m.callbackDuration.Observe(seconds)
}

// SetCommandQueueDepth reports the current depth of the pending command queue.
func (m *EngineMetrics) SetCommandQueueDepth(depth int) {
	m.commandQueueDepth.Set(float64(depth))
}

// RecordXrun increments the xrun counter.
func (m *EngineMetrics) RecordXrun() {
	m.xrunsTotal.Inc()
}

// SessionStoreMetrics tracks session-store query and backup operations.
type SessionStoreMetrics struct {
	operationsTotal *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
}

// NewSessionStoreMetrics registers session-store metrics on the given registry.
func NewSessionStoreMetrics(registry prometheus.Registerer) (*SessionStoreMetrics, error) {
	m := &SessionStoreMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "sessionstore",
			Name:      "operations_total",
			Help:      "Total session-store operations by name and status.",
		}, []string{"operation", "status"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "sessionstore",
			Name:      "operation_errors_total",
			Help:      "Total session-store operation errors by name and error type.",
		}, []string{"operation", "error_type"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tapedeck",
			Subsystem: "sessionstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of session-store operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.operationsTotal, m.operationErrors, m.durationSeconds} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordOperation implements Recorder.
func (m *SessionStoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *SessionStoreMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *SessionStoreMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}
