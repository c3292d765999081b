// Package multitable replays a Mapping Group against every target table of
// its data group.
package multitable

import (
	"context"
	"fmt"
	"time"

	"mapsync/internal/broker"
	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
	"mapsync/internal/materialize"
	"mapsync/internal/metrics"
	"mapsync/internal/storage"
	"mapsync/internal/value"
)

// Logger is the minimal logging interface used by the sync engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Status is the outcome of one table within a sync.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TableResult reports one schema of a group sync.
type TableResult struct {
	Schema       string        `json:"schema"`
	Table        string        `json:"table"`
	Status       Status        `json:"status"`
	RowsAffected int64         `json:"rowsAffected"`
	Message      string        `json:"message,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SyncResult aggregates a group sync. Skipped tables count as neither a
// success nor a failure.
type SyncResult struct {
	Group     string        `json:"group"`
	Tables    []TableResult `json:"tables"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

// OK reports whether no table failed.
func (r SyncResult) OK() bool { return r.Failed == 0 }

func (r *SyncResult) add(t TableResult) {
	r.Tables = append(r.Tables, t)
	switch t.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// Engine loads each schema of a group sequentially, one transaction per table.
// A failing table does not roll back earlier ones and does not stop later ones.
type Engine struct {
	Loader storage.Loader

	// Publisher, when set, receives the SyncResult as JSON on
	// broker.SyncTopic(TopicPrefix, group). Publish failures are logged only.
	Publisher   broker.Publisher
	TopicPrefix string

	// CreateTables runs Loader.EnsureTables for each non-skipped schema
	// before its load.
	CreateTables bool

	Logger Logger

	// now is overridden in tests.
	now func() time.Time
}

// SyncGroup materializes rows through every Mapping Set of g and bulk-loads
// each schema in catalog order.
//
// Edge cases:
//   - A set with no mapped fields is skipped without calling the loader.
//   - A load error, or a LoadResult with Success=false, marks the table failed
//     and the sync moves on.
//   - Cancelling ctx stops the sync before the next table; the partial result
//     is returned together with ctx.Err().
func (e *Engine) SyncGroup(ctx context.Context, g *mapping.Group, rows []value.Row) (SyncResult, error) {
	if e.Loader == nil {
		return SyncResult{}, fmt.Errorf("multitable: Loader is required")
	}
	if g == nil {
		return SyncResult{}, fmt.Errorf("multitable: nil mapping group")
	}

	logf := e.logger()
	res := SyncResult{Group: g.ID(), Tables: []TableResult{}}
	start := e.clock()

	for _, sc := range g.Schemas() {
		if err := ctx.Err(); err != nil {
			logf("stage=sync group=%s status=cancelled done=%d", g.ID(), len(res.Tables))
			return res, err
		}

		set, err := g.Set(sc.ID)
		if err != nil {
			return res, err
		}
		tr := e.syncTable(ctx, sc, set, rows)
		res.add(tr)

		metrics.RecordSyncTable(string(tr.Status), tr.RowsAffected, tr.Duration)
		if tr.Status == StatusFailed {
			logf("stage=sync_table level=warn schema=%s table=%s status=%s rows=%d duration=%s err=%q",
				tr.Schema, tr.Table, tr.Status, tr.RowsAffected, tr.Duration, tr.Message)
		} else {
			logf("stage=sync_table schema=%s table=%s status=%s rows=%d duration=%s",
				tr.Schema, tr.Table, tr.Status, tr.RowsAffected, tr.Duration)
		}
	}

	logf("stage=sync group=%s succeeded=%d failed=%d skipped=%d duration=%s",
		res.Group, res.Succeeded, res.Failed, res.Skipped, e.since(start))
	e.publish(ctx, res)
	return res, nil
}

func (e *Engine) syncTable(ctx context.Context, sc catalog.Schema, set mapping.Set, rows []value.Row) TableResult {
	tr := TableResult{Schema: sc.ID, Table: sc.TableName}
	if set.MappedCount() == 0 {
		tr.Status = StatusSkipped
		tr.Message = "no mapped fields"
		return tr
	}

	start := e.clock()
	if e.CreateTables {
		if err := e.Loader.EnsureTables(ctx, []storage.TableSpec{storage.TableSpecFor(sc)}); err != nil {
			tr.Status = StatusFailed
			tr.Message = fmt.Sprintf("create table: %v", err)
			tr.Duration = e.since(start)
			return tr
		}
	}

	cols, cells := materialize.Table(sc, set, rows, materialize.DefaultTableOptions())
	lr, err := e.Loader.Load(ctx, sc.TableName, cols, cells)
	tr.Duration = e.since(start)
	switch {
	case err != nil:
		tr.Status = StatusFailed
		tr.Message = err.Error()
	case !lr.Success:
		tr.Status = StatusFailed
		tr.Message = lr.Message
	default:
		tr.Status = StatusSuccess
		tr.RowsAffected = lr.RowsAffected
		tr.Message = lr.Message
	}
	return tr
}

func (e *Engine) publish(ctx context.Context, res SyncResult) {
	if e.Publisher == nil {
		return
	}
	topic := broker.SyncTopic(e.TopicPrefix, res.Group)
	if err := broker.PublishJSON(ctx, e.Publisher, topic, res); err != nil {
		e.logger()("stage=sync_publish level=warn topic=%s err=%v", topic, err)
	}
}

func (e *Engine) logger() func(format string, v ...any) {
	if e.Logger == nil {
		return func(string, ...any) {}
	}
	return e.Logger.Printf
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) since(start time.Time) time.Duration {
	return e.clock().Sub(start).Truncate(time.Millisecond)
}
