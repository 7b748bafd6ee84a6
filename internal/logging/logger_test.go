package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetState replaces the registry between tests.
func resetState() {
	std = newRegistry()
}

func enabledLevels(h slog.Handler) (debug, info, warn bool) {
	ctx := context.Background()
	return h.Enabled(ctx, slog.LevelDebug), h.Enabled(ctx, slog.LevelInfo), h.Enabled(ctx, slog.LevelWarn)
}

func TestModuleLevels(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"process": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"process", true, true, true},
		{"api", false, false, true},
		{"render", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			debug, info, warn := enabledLevels(GetLogger(tt.module).Handler())
			if debug != tt.wantDebug || info != tt.wantInfo || warn != tt.wantWarn {
				t.Errorf("%s enabled debug/info/warn = %v/%v/%v, want %v/%v/%v",
					tt.module, debug, info, warn, tt.wantDebug, tt.wantInfo, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState()

	early := GetLogger("process")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize has debug enabled, want info default")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"process": "debug"}})

	if GetLogger("process") != early {
		t.Error("GetLogger returned a different logger after Initialize")
	}
	if !GetLogger("process").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("process logger should have debug enabled after Initialize")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "warn"})
	logger := GetLogger("render")

	if !SetModuleLevel("render", "debug") {
		t.Fatal("SetModuleLevel(debug) = false")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after SetModuleLevel")
	}

	if !SetModuleLevel("render", "") {
		t.Fatal("SetModuleLevel(\"\") = false")
	}
	if logger.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info still enabled after reset to global warn")
	}

	if SetModuleLevel("render", "loud") {
		t.Error("SetModuleLevel(loud) = true, want false")
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug"})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) { got = append(got, entry) })

	GetLogger("process").With("pid", 42).Info("Process started", "command", "echo hi")

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("ring buffer is empty")
	}
	last := entries[len(entries)-1]
	if last.Module != "process" || last.Message != "Process started" || last.Level != "info" {
		t.Errorf("entry = %+v", last)
	}
	if last.Attributes["command"] != "echo hi" {
		t.Errorf("command attribute = %v", last.Attributes["command"])
	}
	if len(got) == 0 || got[len(got)-1].Message != "Process started" {
		t.Errorf("callback entries = %+v", got)
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg, Timestamp: time.Unix(int64(i), 0)})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", rb.Count())
	}
	var msgs []string
	for _, e := range rb.ReadAll() {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "cde" {
		t.Errorf("ReadAll() order = %v, want [c d e]", msgs)
	}
	if rb.LastSeq() != 5 {
		t.Errorf("LastSeq() = %d, want 5", rb.LastSeq())
	}

	since := rb.Since(3)
	if len(since) != 2 || since[0].Seq != 4 || since[1].Message != "e" {
		t.Errorf("Since(3) = %+v, want entries 4 and 5", since)
	}
	if got := rb.Since(5); got != nil {
		t.Errorf("Since(5) = %+v, want nil", got)
	}
}

func TestBufferHandlerGroups(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	GetLogger("render").WithGroup("job").With("id", "abc").Info("Progress", slog.Group("rec", "frame", 12))

	entries := GetBuffer().ReadAll()
	last := entries[len(entries)-1]
	if last.Module != "render" {
		t.Errorf("Module = %q, want render", last.Module)
	}
	if last.Attributes["job.id"] != "abc" || last.Attributes["job.rec.frame"] != int64(12) {
		t.Errorf("Attributes = %v", last.Attributes)
	}
	if last.Seq == 0 {
		t.Error("entry has no sequence number")
	}
}

func TestJournalKey(t *testing.T) {
	tests := map[string]string{
		"pid":       "PID",
		"job_id":    "JOB_ID",
		"job-id":    "JOB_ID",
		"exit.code": "EXIT_CODE",
		"_private":  "PRIVATE",
		"2pass":     "F2PASS",
		"":          "F",
	}
	for in, want := range tests {
		if got := journalKey(in); got != want {
			t.Errorf("journalKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFanoutHandler(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	multi := fanout{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	logger := slog.New(multi).With("module", "process")

	logger.Debug("pump closed")
	logger.Info("exited")

	if !strings.Contains(debugBuf.String(), "pump closed") {
		t.Error("debug handler missed debug record")
	}
	if strings.Contains(infoBuf.String(), "pump closed") {
		t.Error("info handler received debug record")
	}
	if !strings.Contains(infoBuf.String(), "exited") {
		t.Error("info handler missed info record")
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "warn",
		Module:     "process",
		Message:    "Graceful stop timed out",
		Attributes: map[string]any{"pid": 7, "timeout": "1s"},
	}

	want := "2024-01-02T03:04:05Z [WARN] [process] Graceful stop timed out pid=7 timeout=1s"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := parseLevel(tt.input)
		if (got != nil) != tt.ok {
			t.Errorf("parseLevel(%q) ok = %v, want %v", tt.input, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
		}
	}
}
