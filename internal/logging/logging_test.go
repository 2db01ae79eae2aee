package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("site")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("refreshed", "url", "https://updates.example.test/update-center.json")

	out := buf.String()
	if strings.Contains(out, `msg="INFO refreshed`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=refreshed") {
		t.Fatalf("expected plain refreshed message, got: %s", out)
	}
	if !strings.Contains(out, "component=site") {
		t.Fatalf("expected component field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("job")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithJobAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithJob(L("job"), 42, "batch-1")
	logger.Info("installing")

	out := buf.String()
	if !strings.Contains(out, "jobId=42") {
		t.Fatalf("expected jobId field, got: %s", out)
	}
	if !strings.Contains(out, "correlationId=batch-1") {
		t.Fatalf("expected correlationId field, got: %s", out)
	}
}
