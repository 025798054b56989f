package logsink

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestBlobPath(t *testing.T) {
	ts := time.Date(2026, time.March, 7, 23, 30, 0, 0, time.FixedZone("x", -2*60*60))
	if got := BlobPath(ts, "web-1"); got != "2026/03/08/web-1.jsonl" {
		t.Fatalf("unexpected blob path %q", got)
	}
}

func TestEncode(t *testing.T) {
	r := slog.NewRecord(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelError, "Blutic Consent: domain id is missing or invalid", 0)
	r.AddAttrs(slog.String("severity", "error"), slog.Any("error", errors.New("boom")), slog.Group("req", slog.String("path", "/")))

	line, err := encode(r, []slog.Attr{slog.String("service", "bluticconsent")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Fatal("expected newline terminated line")
	}

	var ev map[string]any
	if err := json.Unmarshal(line, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev["msg"] != "Blutic Consent: domain id is missing or invalid" || ev["level"] != "ERROR" {
		t.Fatalf("unexpected event %v", ev)
	}
	if ev["error"] != "boom" || ev["service"] != "bluticconsent" || ev["time"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected event %v", ev)
	}
	if req, ok := ev["req"].(map[string]any); !ok || req["path"] != "/" {
		t.Fatalf("expected flattened group, got %v", ev["req"])
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatal("empty config should be disabled")
	}
	if !(Config{AccountName: "acct", Container: "logs"}).Enabled() {
		t.Fatal("account and container should enable the sink")
	}
}
