// Package metrics records per-operation throughput and duration;
// engine Backup is the only operation that records them. Grounded on
// internal/metrics/collector.go's OperationMetrics/RecordOperation
// shape, generalized from database-dump throughput to file-backup
// throughput (bytes hashed/copied, counted by change classification
// rather than compression ratio) and stripped of its process-global
// singleton: no package in this module keeps ambient mutable state, so
// a Collector is constructed once per Context and threaded through
// explicitly instead of living behind a package-level global.
package metrics

import (
	"sync"
	"time"

	"github.com/example/fileguardian/internal/logger"
)

// OperationMetrics holds the outcome of one recorded run, attached to
// BackupResult.Metrics by engine Backup.
type OperationMetrics struct {
	Operation      string        `json:"operation"`
	BackupName     string        `json:"backup_name"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
	BytesProcessed int64         `json:"bytes_processed"`
	ThroughputMBps float64       `json:"throughput_mbps"`
	NewFiles       int           `json:"new_files"`
	ModifiedFiles  int           `json:"modified_files"`
	DeletedFiles   int           `json:"deleted_files"`
	UnchangedFiles int           `json:"unchanged_files"`
	ErrorCount     int           `json:"error_count"`
	Success        bool          `json:"success"`
}

// FileCounts is the per-classification tally DiffSnapshots produces,
// passed through to RecordOperation so that metrics does not import
// planner.
type FileCounts struct {
	New       int
	Modified  int
	Deleted   int
	Unchanged int
}

// Collector accumulates OperationMetrics for one engine invocation's
// lifetime (a CLI process, a test run). It is owned by the caller via
// EngineContext.Metrics, never a package-level variable.
type Collector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	log     logger.Logger
}

// NewCollector creates a Collector that logs each recorded operation
// through log in addition to retaining it for GetMetrics/GetAverages.
func NewCollector(log logger.Logger) *Collector {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Collector{log: log}
}

// RecordOperation records one completed operation's metrics.
func (c *Collector) RecordOperation(operation, backupName string, start time.Time, bytesProcessed int64, counts FileCounts, success bool, errorCount int) OperationMetrics {
	duration := time.Since(start)
	m := OperationMetrics{
		Operation:      operation,
		BackupName:     backupName,
		StartTime:      start,
		Duration:       duration,
		BytesProcessed: bytesProcessed,
		ThroughputMBps: throughputMBps(bytesProcessed, duration),
		NewFiles:       counts.New,
		ModifiedFiles:  counts.Modified,
		DeletedFiles:   counts.Deleted,
		UnchangedFiles: counts.Unchanged,
		ErrorCount:     errorCount,
		Success:        success,
	}

	c.mu.Lock()
	c.metrics = append(c.metrics, m)
	c.mu.Unlock()

	fields := map[string]interface{}{
		"metric_type":     "operation_complete",
		"operation":       operation,
		"backup_name":     backupName,
		"duration_ms":     duration.Milliseconds(),
		"bytes_processed": bytesProcessed,
		"throughput_mbps": m.ThroughputMBps,
		"new_files":       counts.New,
		"modified_files":  counts.Modified,
		"deleted_files":   counts.Deleted,
		"error_count":     errorCount,
		"success":         success,
	}
	if success {
		c.log.WithFields(fields).Info("operation completed")
	} else {
		c.log.WithFields(fields).Error("operation failed")
	}
	return m
}

// GetMetrics returns a copy of every operation recorded so far.
func (c *Collector) GetMetrics() []OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]OperationMetrics, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// GetAverages summarizes the recorded operations.
func (c *Collector) GetAverages() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.metrics) == 0 {
		return map[string]interface{}{"total_operations": 0}
	}

	var totalDuration time.Duration
	var totalBytes, totalThroughput float64
	var successCount, errorCount int
	for _, m := range c.metrics {
		totalDuration += m.Duration
		totalBytes += float64(m.BytesProcessed)
		totalThroughput += m.ThroughputMBps
		if m.Success {
			successCount++
		}
		errorCount += m.ErrorCount
	}

	count := len(c.metrics)
	return map[string]interface{}{
		"total_operations":    count,
		"success_rate":        float64(successCount) / float64(count) * 100,
		"avg_duration_ms":     totalDuration.Milliseconds() / int64(count),
		"avg_bytes":           totalBytes / float64(count),
		"avg_throughput_mbps": totalThroughput / float64(count),
		"total_errors":        errorCount,
	}
}

func throughputMBps(bytes int64, duration time.Duration) float64 {
	seconds := duration.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(bytes) / seconds / 1024 / 1024
}
