package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BufferPoolMetrics tracks sample-format conversions and buffer-pool
// allocation pressure for the audio callback path.
type BufferPoolMetrics struct {
	formatConversionsTotal *prometheus.CounterVec
	formatConversionErrors *prometheus.CounterVec
	bufferAllocationAttempts *prometheus.CounterVec
}

// NewBufferPoolMetrics registers buffer-pool metrics on the given registry.
func NewBufferPoolMetrics(registry prometheus.Registerer) (*BufferPoolMetrics, error) {
	m := &BufferPoolMetrics{
		formatConversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "bufferpool",
			Name:      "format_conversions_total",
			Help:      "Total sample-format conversions by conversion type, bit depth, and status.",
		}, []string{"conversion_type", "bit_depth", "status"}),
		formatConversionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "bufferpool",
			Name:      "format_conversion_errors_total",
			Help:      "Total sample-format conversion errors by conversion type, bit depth, and error type.",
		}, []string{"conversion_type", "bit_depth", "error_type"}),
		bufferAllocationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapedeck",
			Subsystem: "bufferpool",
			Name:      "allocation_attempts_total",
			Help:      "Total buffer-pool allocation attempts by buffer type, source, and result.",
		}, []string{"buffer_type", "source", "result"}),
	}

	for _, c := range []prometheus.Collector{m.formatConversionsTotal, m.formatConversionErrors, m.bufferAllocationAttempts} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordAudioConversion records a completed sample-format conversion.
func (m *BufferPoolMetrics) RecordAudioConversion(conversionType string, bitDepth int, status string) {
	m.formatConversionsTotal.WithLabelValues(conversionType, strconv.Itoa(bitDepth), status).Inc()
}

// RecordAudioConversionError records a failed sample-format conversion.
func (m *BufferPoolMetrics) RecordAudioConversionError(conversionType string, bitDepth int, errorType string) {
	m.formatConversionErrors.WithLabelValues(conversionType, strconv.Itoa(bitDepth), errorType).Inc()
}

// RecordBufferAllocationAttempt records one buffer-pool allocation attempt
// and its outcome (first_allocation, repeated_blocked, attempted, error).
func (m *BufferPoolMetrics) RecordBufferAllocationAttempt(bufferType, source, result string) {
	m.bufferAllocationAttempts.WithLabelValues(bufferType, source, result).Inc()
}
