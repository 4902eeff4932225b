// Package metrics provides Prometheus instrumentation for the conversion
// engine: conversion counts, pass latencies, and output volume.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversionsTotal counts finished conversions.
	// Labels: status (success/failure)
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabular_conversions_total",
			Help: "Total number of conversions",
		},
		[]string{"status"},
	)

	// RowsConverted counts top-level records across all conversions.
	RowsConverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabular_rows_converted_total",
			Help: "Total number of top-level records converted",
		},
	)

	// InputBytes counts raw input bytes consumed, after decompression.
	InputBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabular_input_bytes_total",
			Help: "Total input bytes consumed",
		},
	)

	// StageLatency tracks per-stage latency in nanoseconds.
	// Labels: stage (tokenize/orient/reduce/build/materialize/assemble)
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tabular_stage_latency_nanoseconds",
			Help: "Conversion stage latency in nanoseconds",
			Buckets: []float64{
				1e4, // 10μs
				1e5, // 100μs
				1e6, // 1ms
				1e7, // 10ms
				1e8, // 100ms
				1e9, // 1s
				1e10, // 10s
			},
		},
		[]string{"stage"},
	)

	// ColumnsOutput tracks the number of output columns per conversion.
	ColumnsOutput = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabular_output_columns",
			Help:    "Output column count per conversion",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// DroppedColumns counts conflicted columns removed from the output.
	DroppedColumns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabular_dropped_columns_total",
			Help: "Total columns dropped due to structural conflicts",
		},
	)
)

// Timer measures one stage's wall time and reports it on Stop.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer starts timing the named stage.
func NewTimer(stage string) *Timer {
	return &Timer{start: time.Now(), stage: stage}
}

// Stop observes the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	StageLatency.WithLabelValues(t.stage).Observe(float64(d.Nanoseconds()))
	return d
}
