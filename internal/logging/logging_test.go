package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrintfLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		msg       string
		verbose   bool
		wantLevel string
	}{
		{name: "info default", msg: "stage=parse ok rows=3", wantLevel: "info"},
		{name: "warn", msg: "stage=suggest level=warn degraded=empty", wantLevel: "warn"},
		{name: "error", msg: "stage=sync_table level=error status=failed", wantLevel: "error"},
		{name: "debug when verbose", msg: "stage=cache level=debug hit=true", verbose: true, wantLevel: "debug"},
		{name: "debug dropped", msg: "stage=cache level=debug hit=true", wantLevel: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			zl, err := New(&buf, FormatJSON, tt.verbose)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			Printf(zl).Printf("%s", tt.msg)
			_ = zl.Sync()

			if tt.wantLevel == "" {
				if buf.Len() != 0 {
					t.Fatalf("expected nothing, got %q", buf.String())
				}
				return
			}
			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode %q: %v", buf.String(), err)
			}
			if entry["level"] != tt.wantLevel || entry["msg"] != tt.msg {
				t.Fatalf("entry=%v", entry)
			}
		})
	}
}

func TestNewConsoleAndUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zl, err := New(&buf, FormatConsole, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	zl.Infof("stage=%s ok", "report")
	if !strings.Contains(buf.String(), "info\tstage=report ok") {
		t.Fatalf("console output=%q", buf.String())
	}

	if _, err := New(&buf, "xml", false); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestNilAndNop(t *testing.T) {
	t.Parallel()

	Printf(nil).Printf("stage=%s", "x")
	Nop().Printf("stage=%s", "y")
}
