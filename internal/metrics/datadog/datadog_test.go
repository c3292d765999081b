package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/google/go-cmp/cmp"

	"mapsync/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newQuietBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func seriesNames(p datadogV2.MetricPayload) []string {
	var names []string
	for _, s := range p.Series {
		names = append(names, s.Metric)
	}
	sort.Strings(names)
	return names
}

func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}
	in := errors.New("boom")
	got := wrapInitErr(in)
	if !errors.Is(got, in) || !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr(err)=%v", got)
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	for _, tc := range []struct{ step, status string }{
		{"sync_table", "success"},
		{"", "ok"},
		{"parse", ""},
		{"", ""},
	} {
		step, status := splitStepStatusKey(stepStatusKey(tc.step, tc.status))
		if step != tc.step || status != tc.status {
			t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", step, status, tc.step, tc.status)
		}
	}
	if step, status := splitStepStatusKey("no-sep"); step != "no-sep" || status != "unknown" {
		t.Fatalf("splitStepStatusKey(no-sep)=(%q,%q)", step, status)
	}
}

func TestWithTagsDoesNotAliasBase(t *testing.T) {
	base := []string{"env:test", "job:mapsync"}
	got := withTags(base, "status:ok")
	if diff := cmp.Diff([]string{"env:test", "job:mapsync", "status:ok"}, got); diff != "" {
		t.Fatalf("withTags (-want +got):\n%s", diff)
	}
	got[0] = "env:mutated"
	if base[0] != "env:test" {
		t.Fatalf("withTags output aliases base")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestAddPercentilesDoesNotMutateInput(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, "mapsync.step.duration_seconds", in, []string{"step:sync_table"}, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if diff := cmp.Diff(orig, in); diff != "" {
		t.Fatalf("samples mutated (-want +got):\n%s", diff)
	}
	last := series[len(series)-1]
	if last.Metric != "mapsync.step.duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("samples gauge = %s %v", last.Metric, *last.Points[0].Value)
	}
	if *series[4].Points[0].Value != 5 {
		t.Fatalf("max gauge = %v", *series[4].Points[0].Value)
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"service:mapsync"},
		submitter: &fakeSubmitter{},
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:mapsync") || !contains(b.baseTags, "service:mapsync") {
		t.Fatalf("baseTags=%v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsSyncSeriesAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.SyncTablesTotal, 2, metrics.Labels{"status": "success"})
	b.IncCounter(metrics.SyncTablesTotal, 1, metrics.Labels{"status": "failed"})
	b.IncCounter(metrics.SyncRowsTotal, 40, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "sync_table", "status": "success"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "parse", "status": "ok"})
	b.IncCounter(metrics.HTTPRequestsTotal, 7, metrics.Labels{"status": "200"})
	b.ObserveHistogram(metrics.HTTPDurationSeconds, 0.1, metrics.Labels{"status": "200"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.tableCounts) != 0 || b.syncRows != 0 || len(b.durationSamples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	names := seriesNames(payload)
	for _, w := range []string{
		"mapsync.sync.tables.total",
		"mapsync.sync.rows.total",
		"mapsync.step.total",
		"mapsync.step.duration_seconds.p50",
		"mapsync.step.duration_seconds.samples",
		"mapsync.http.requests.total",
		"mapsync.http.request_duration_seconds.p99",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing %q; got=%v", w, names)
		}
	}

	var sawFailed bool
	for _, s := range payload.Series {
		if s.Metric == "mapsync.sync.tables.total" && contains(s.Tags, "status:failed") {
			sawFailed = true
			if *s.Points[0].Value != 1 || *s.Points[0].Timestamp != 1000 {
				t.Fatalf("failed tables point=%v@%v", *s.Points[0].Value, *s.Points[0].Timestamp)
			}
		}
	}
	if !sawFailed {
		t.Fatalf("no status:failed table series")
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submissions=%d, want 0", fs.count())
	}
}

func TestFlush_ReturnsSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403")}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.SyncRowsTotal, 1, nil)
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	fs.err = nil
	if err := b.Flush(); err != nil || fs.count() != 1 {
		t.Fatalf("second Flush err=%v count=%d; buffers should reset after a failed submit", err, fs.count())
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.SyncRowsTotal, 1, nil)

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background flush; got %d", fs.count())
	}

	b.IncCounter(metrics.SyncRowsTotal, 1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected a final flush on Close; got %d submissions", fs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.IncCounter(metrics.SyncTablesTotal, 1, metrics.Labels{"status": "success"})
				b.IncCounter(metrics.SyncRowsTotal, 3, nil)
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "sync_table", "status": "success"})
				b.ObserveHistogram(metrics.HTTPDurationSeconds, 0.02, metrics.Labels{"status": "200"})
			}
		}()
	}
	wg.Wait()

	if got, want := b.syncRows, float64(workers*1000*3); got != want {
		t.Fatalf("syncRows=%v, want %v", got, want)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

func TestIgnoredEvents(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.SyncRowsTotal, 0, nil)
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "sync_table"})
	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, _ := fs.last()
	if len(payload.Series) != 1 {
		t.Fatalf("series=%v, want only the http count", seriesNames(payload))
	}
	if s := payload.Series[0]; s.Metric != "mapsync.http.requests.total" || !contains(s.Tags, "status:unknown") {
		t.Fatalf("series=%s tags=%v", s.Metric, s.Tags)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:mapsync,  ,team:data ", want: []string{"env:prod", "service:mapsync", "team:data"}},
		{name: "single_tag", in: "service:mapsync", want: []string{"service:mapsync"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, ParseTagsCSV(tt.in)); diff != "" {
				t.Fatalf("ParseTagsCSV(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}
