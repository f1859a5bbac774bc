package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func parseEntry(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v\n%s", err, line)
	}
	return entry
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("local:/tmp/ng.sock").WithOutput(&buf)

	logger.Info("session exited", map[string]any{"exit_code": 0})

	entry := parseEntry(t, buf.String())
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "session exited" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["address"] != "local:/tmp/ng.sock" {
		t.Errorf("address = %v, want local:/tmp/ng.sock", entry["address"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok {
		t.Fatalf("fields = %v, want object", entry["fields"])
	}
	if fields["exit_code"] != float64(0) {
		t.Errorf("fields.exit_code = %v, want 0", fields["exit_code"])
	}
}

func TestLogger_WithCommand(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("local:/run/ng.sock").WithOutput(&buf).WithCommand("ng-stats")

	logger.Warn("stdin read failed, ending input", map[string]any{"error": "boom"})

	entry := parseEntry(t, buf.String())
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["command"] != "ng-stats" {
		t.Errorf("command = %v, want ng-stats", entry["command"])
	}
	if entry["address"] != "local:/run/ng.sock" {
		t.Errorf("address = %v, want local:/run/ng.sock", entry["address"])
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("127.0.0.1:2113").WithOutput(&buf)

	logger.Debug("a", nil)
	logger.Info("b", nil)
	logger.Warn("c", nil)
	logger.Error("d", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d log lines, want 4", len(lines))
	}
	for i, want := range []string{"debug", "info", "warn", "error"} {
		if entry := parseEntry(t, lines[i]); entry["level"] != want {
			t.Errorf("line %d level = %v, want %s", i, entry["level"], want)
		}
	}
}

func TestSugaredLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	sugar := NewLogger("local:/tmp/ng.sock").WithOutput(&buf).Sugar()

	sugar.Infof("ran %d sessions", 3)

	entry := parseEntry(t, buf.String())
	if entry["message"] != "ran 3 sessions" {
		t.Errorf("message = %v, want %q", entry["message"], "ran 3 sessions")
	}
}

func TestSugaredLogger_With(t *testing.T) {
	var buf bytes.Buffer
	sugar := NewLogger("local:/tmp/ng.sock").WithOutput(&buf).Sugar().With("command", "echo")

	sugar.Debugf("waiting up to %s", "5s")

	entry := parseEntry(t, buf.String())
	if entry["command"] != "echo" {
		t.Errorf("command = %v, want echo", entry["command"])
	}
	if entry["level"] != "debug" {
		t.Errorf("level = %v, want debug", entry["level"])
	}
}

func TestNewNop_Discards(t *testing.T) {
	logger := NewNop()
	logger.Debug("a", nil)
	logger.Info("b", map[string]any{"k": "v"})
	logger.Warn("c", nil)
	logger.Error("d", nil)
	logger.WithCommand("x").Info("e", nil)
	logger.Sugar().Infof("f %d", 1)
}
