package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func reset() {
	SetVerbose(false)
	SetFormat(FormatText)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	output := buf.String()
	if !strings.Contains(output, "level=DEBUG") {
		t.Errorf("expected debug level in output: %q", output)
	}
	if !strings.Contains(output, `msg="test message arg"`) {
		t.Errorf("expected formatted message in output: %q", output)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("warning message")
	Error("error %d", 7)

	output := buf.String()
	if !strings.Contains(output, "level=WARN") || !strings.Contains(output, `msg="warning message"`) {
		t.Errorf("unexpected warn output: %q", output)
	}
	if !strings.Contains(output, "level=ERROR") || !strings.Contains(output, `msg="error 7"`) {
		t.Errorf("unexpected error output: %q", output)
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Retrieval")

	output := buf.String()
	if !strings.Contains(output, "section=Retrieval") {
		t.Errorf("unexpected section output: %q", output)
	}
}

func TestJSONFormat(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat(FormatJSON)
	SetVerbose(true)

	Info("info message %d", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "info message 42" || rec["level"] != "INFO" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestConcurrentAccess(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestLevelGate(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		log     func()
		want    string
	}{
		{"info hidden", false, func() { Info("indexed %d", 3) }, ""},
		{"info shown", true, func() { Info("indexed %d", 3) }, "level=INFO"},
		{"section hidden", false, func() { Section("Retrieve") }, ""},
		{"section shown", true, func() { Section("Retrieve") }, "section=Retrieve"},
		{"error always", false, func() { Error("store %s", "offline") }, `level=ERROR msg="store offline"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer reset()

			var buf bytes.Buffer
			SetOutput(&buf)
			SetVerbose(tt.verbose)

			tt.log()

			got := buf.String()
			if tt.want == "" {
				if got != "" {
					t.Errorf("expected no output, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output: %q", tt.want, got)
			}
		})
	}
}

func TestFormatFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("PASSAGE_LOG_FORMAT", tt.env)
			if got := formatFromEnv(); got != tt.want {
				t.Errorf("formatFromEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_ReturnsCurrentHandler(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Logger().Debug("structured", "chunks", 4)

	if !strings.Contains(buf.String(), "chunks=4") {
		t.Errorf("expected structured attribute in output: %q", buf.String())
	}
}
