// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
)

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}

	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInitReplaces verifies a second Init swaps the destination, which
// the daemon relies on to redirect logs after config load.
func TestInitReplaces(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	Init(&buf1, LevelInfo)
	Init(&buf2, LevelDebug)

	Get().Info("after swap")

	if buf1.Len() != 0 {
		t.Error("Expected no output on the replaced writer")
	}
	if buf2.Len() == 0 {
		t.Error("Expected output on the new writer")
	}
}

// TestGetDefault verifies default logger creation without Init.
func TestGetDefault(t *testing.T) {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil without Init()")
	}

	if logger.out != os.Stdout {
		t.Error("Get() should default to os.Stdout")
	}
}

// TestEntryShape verifies entries are valid JSON with the expected
// fields.
func TestEntryShape(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelDebug)

	Error("drain failed", errors.New("connection refused"),
		map[string]interface{}{"record_id": "local_1_abc"})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}

	if entry.Level != "ERROR" {
		t.Errorf("Expected ERROR level, got %s", entry.Level)
	}
	if entry.Message != "drain failed" {
		t.Errorf("Unexpected message: %s", entry.Message)
	}
	if entry.Error != "connection refused" {
		t.Errorf("Unexpected error field: %s", entry.Error)
	}
	if entry.Context["record_id"] != "local_1_abc" {
		t.Errorf("Unexpected context: %v", entry.Context)
	}
}

// TestErrorWithCode verifies the code field is carried through.
func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	ErrorWithCode("sync failed", "NETWORK_ERROR", errors.New("timeout"))

	if !strings.Contains(buf.String(), `"code":"NETWORK_ERROR"`) {
		t.Errorf("Expected code in output, got %s", buf.String())
	}
}

// TestLevelFiltering verifies entries below the minimum level are
// suppressed.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelWarn)

	Debug("hidden")
	Info("hidden")
	Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 entry, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "visible") {
		t.Errorf("Unexpected entry: %s", lines[0])
	}
}

// TestContextMerging verifies multiple context maps merge with
// later maps winning.
func TestContextMerging(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	Info("merged",
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"b": 2})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}

	if entry.Context["b"] != float64(2) {
		t.Errorf("Expected later context to win, got %v", entry.Context["b"])
	}
}

// TestParseLevel verifies config string mapping.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"DEBUG", LevelDebug},
		{"WARN", LevelWarn},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
