package indexdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the metrics
// package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordFinalize is called after an index is frozen.
	RecordFinalize(dictionaries, tables int, duration time.Duration, err error)

	// RecordMerge is called after one index has been merged into another.
	// rows is the number of rows copied from the source.
	RecordMerge(rows int, duration time.Duration, err error)

	// RecordWrite is called after an index or archive is serialized.
	RecordWrite(bytes int64, duration time.Duration, err error)

	// RecordOpen is called after an index, archive or archive entry is opened.
	// kind is one of "index", "archive" or "entry".
	RecordOpen(kind string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFinalize(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordMerge(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordWrite(int64, time.Duration, error)       {}
func (NoopMetricsCollector) RecordOpen(string, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FinalizeCount      atomic.Int64
	FinalizeErrors     atomic.Int64
	FinalizeTotalNanos atomic.Int64
	MergeCount         atomic.Int64
	MergeErrors        atomic.Int64
	MergeRows          atomic.Int64
	MergeTotalNanos    atomic.Int64
	WriteCount         atomic.Int64
	WriteErrors        atomic.Int64
	WriteBytes         atomic.Int64
	OpenCount          atomic.Int64
	OpenErrors         atomic.Int64
}

// RecordFinalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalize(_, _ int, duration time.Duration, err error) {
	b.FinalizeCount.Add(1)
	b.FinalizeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FinalizeErrors.Add(1)
	}
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(rows int, duration time.Duration, err error) {
	b.MergeCount.Add(1)
	b.MergeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MergeErrors.Add(1)
		return
	}
	b.MergeRows.Add(int64(rows))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int64, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(bytes)
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ string, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FinalizeCount:    b.FinalizeCount.Load(),
		FinalizeErrors:   b.FinalizeErrors.Load(),
		FinalizeAvgNanos: avg(b.FinalizeTotalNanos.Load(), b.FinalizeCount.Load()),
		MergeCount:       b.MergeCount.Load(),
		MergeErrors:      b.MergeErrors.Load(),
		MergeRows:        b.MergeRows.Load(),
		MergeAvgNanos:    avg(b.MergeTotalNanos.Load(), b.MergeCount.Load()),
		WriteCount:       b.WriteCount.Load(),
		WriteErrors:      b.WriteErrors.Load(),
		WriteBytes:       b.WriteBytes.Load(),
		OpenCount:        b.OpenCount.Load(),
		OpenErrors:       b.OpenErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FinalizeCount    int64
	FinalizeErrors   int64
	FinalizeAvgNanos int64
	MergeCount       int64
	MergeErrors      int64
	MergeRows        int64
	MergeAvgNanos    int64
	WriteCount       int64
	WriteErrors      int64
	WriteBytes       int64
	OpenCount        int64
	OpenErrors       int64
}
