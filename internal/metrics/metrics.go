// Package metrics is the backend-neutral metrics facade. Core packages record
// through the helpers here; cmd binaries pick a backend (datadog, prompush or
// none) with SetBackend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends switch on these.
const (
	StepTotal           = "mapsync_step_total"
	StepDurationSeconds = "mapsync_step_duration_seconds"
	SyncTablesTotal     = "mapsync_sync_tables_total"
	SyncRowsTotal       = "mapsync_sync_rows_total"
	HTTPRequestsTotal   = "mapsync_http_requests_total"
	HTTPDurationSeconds = "mapsync_http_request_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by buffering backends.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	current Backend = nopBackend{}
)

// SetBackend installs b process-wide. nil restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	current = b
}

func backend() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Flush flushes the current backend when it buffers.
func Flush() error {
	if f, ok := backend().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one run of step and observes its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := backend()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordSyncTable records the outcome of loading one table during a group
// sync. status is "success", "failed" or "skipped".
func RecordSyncTable(status string, rows int64, d time.Duration) {
	b := backend()
	b.IncCounter(SyncTablesTotal, 1, Labels{"status": status})
	if rows > 0 {
		b.IncCounter(SyncRowsTotal, float64(rows), nil)
	}
	if status != "skipped" {
		b.ObserveHistogram(StepDurationSeconds, d.Seconds(), Labels{"step": "sync_table", "status": status})
	}
}

// RecordHTTP records one served API request.
func RecordHTTP(status int, d time.Duration) {
	l := Labels{"status": strconv.Itoa(status)}
	b := backend()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	b.ObserveHistogram(HTTPDurationSeconds, d.Seconds(), l)
}
