package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/przemyslawpluta/extractd/pkg/types"
)

// TestLogger_WritesTextEntriesToFile는 텍스트 모드에서 Info/Warn/Error/LogResult가 파일에 기록되는지 검증합니다.
func TestLogger_WritesTextEntriesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New(logPath, false, true)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("hello")
	logger.Warn("orientation not written", errors.New("locked"))
	logger.Error("failed op", errors.New("boom"))
	logger.LogResult(types.Result{
		Preview: &types.Preview{Path: "/tmp/a.jpg"},
		Source:  "/raw/a.nef",
	}, 10*time.Millisecond)
	logger.LogResult(types.Result{
		Error:  "File not found",
		Kind:   types.ErrorKindNotFound,
		Source: "/raw/missing.nef",
	}, time.Millisecond)

	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"INFO hello",
		"WARN orientation not written - Error: locked",
		"ERROR failed op - Error: boom",
		"extracted: /raw/a.nef -> /tmp/a.jpg",
		"ERROR not_found: /raw/missing.nef - Error: File not found",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in log: %s", want, text)
		}
	}
}

// TestLogger_JSONModeWritesJSONLine는 JSON 모드에서 한 줄 JSON 레코드가 기록되는지 검증합니다.
func TestLogger_JSONModeWritesJSONLine(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "app.jsonl")
	logger, err := New(logPath, true, false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.LogResult(types.Result{
		Preview: &types.Preview{Data: "/9j/AAAA"},
		Source:  "/raw/a.nef",
	}, 0)
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read json log file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"source":"/raw/a.nef"`) {
		t.Fatalf("unexpected json log content: %s", text)
	}
	// base64 본문은 로그에 남기지 않는다.
	if strings.Contains(text, "/9j/AAAA") || !strings.Contains(text, "(base64, 8 chars)") {
		t.Fatalf("encoded payload must not be logged: %s", text)
	}
}

// TestLogger_WithoutFileOnlyWritesConsole는 경로가 비면 파일 없이 동작하는지 검증합니다.
func TestLogger_WithoutFileOnlyWritesConsole(t *testing.T) {
	logger, err := New("", true, true)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	var buf bytes.Buffer
	logger.SetConsole(&buf)

	logger.Info("ignored")
	logger.Summary(types.BatchSummary{Total: 1, Succeeded: 1})

	if !strings.Contains(buf.String(), "Extracted:      1") {
		t.Fatalf("missing summary: %s", buf.String())
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("expected nil close error, got %v", err)
	}
}

// TestLogger_SummaryAndProgress_WriteToConsole는 Summary/Progress가 console로 나가는지 검증합니다.
func TestLogger_SummaryAndProgress_WriteToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{console: &buf}

	logger.Summary(types.BatchSummary{
		Total:     3,
		Succeeded: 2,
		Failed:    1,
		Duration:  2 * time.Second,
	})
	logger.Progress(1, 3, "a.nef")

	out := buf.String()
	if !strings.Contains(out, "extractd Summary") {
		t.Fatalf("missing summary header: %s", out)
	}
	if !strings.Contains(out, "Failed:         1") {
		t.Fatalf("missing failed count: %s", out)
	}
	if !strings.Contains(out, "[1/3] a.nef") {
		t.Fatalf("missing progress output: %s", out)
	}
}

// TestLogger_NewFailsWhenDirectoryCannotBeCreated는 로그 디렉터리를 만들 수 없으면 실패하는지 검증합니다.
func TestLogger_NewFailsWhenDirectoryCannotBeCreated(t *testing.T) {
	parentAsFile := filepath.Join(t.TempDir(), "not-dir")
	if err := os.WriteFile(parentAsFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	if _, err := New(filepath.Join(parentAsFile, "app.log"), false, true); err == nil {
		t.Fatal("expected logger init error")
	}
}

// TestLogger_CloseWithNilFile는 파일 핸들이 없는 로거의 Close가 안전한지 검증합니다.
func TestLogger_CloseWithNilFile(t *testing.T) {
	logger := &Logger{}
	if err := logger.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
