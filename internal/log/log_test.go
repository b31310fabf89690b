package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"haybase/internal/log"
)

func capturingLogger(t *testing.T, component string) (*log.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(log.Config{
		Component: component,
		Handler:   slog.NewJSONHandler(&buf, nil),
	})
	return logger, &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v (raw: %s)", err, buf.String())
	}
	return record
}

func TestLoggerStampsComponent(t *testing.T) {
	logger, buf := capturingLogger(t, "snapshot-worker")
	logger.Info("hello", "k", "v")

	record := lastRecord(t, buf)
	if record[log.FieldComponent] != "snapshot-worker" {
		t.Errorf("component = %v, want snapshot-worker", record[log.FieldComponent])
	}
	if record["k"] != "v" {
		t.Errorf("k = %v, want v", record["k"])
	}
}

func TestLoggerDefaultsComponent(t *testing.T) {
	logger, buf := capturingLogger(t, "")
	logger.Warn("careful")

	record := lastRecord(t, buf)
	if record[log.FieldComponent] != log.ComponentApp {
		t.Errorf("component = %v, want %s", record[log.FieldComponent], log.ComponentApp)
	}
}

func TestLogHTTPEndFields(t *testing.T) {
	logger, buf := capturingLogger(t, "test")
	sl := log.NewStructuredLogger(logger)

	r := httptest.NewRequest("GET", "/api/accounts?monthId=m1", nil)
	sl.LogHTTPEnd(r.Context(), r, 404, 12, "203.0.113.7", "req-1")

	record := lastRecord(t, buf)
	if record["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for a 4xx", record["level"])
	}
	want := map[string]any{
		log.FieldMethod:     "GET",
		log.FieldPath:       "/api/accounts",
		log.FieldQuery:      "monthId=m1",
		log.FieldStatusCode: float64(404),
		log.FieldSuccess:    false,
		log.FieldClientIP:   "203.0.113.7",
		log.FieldRequestID:  "req-1",
		log.FieldComponent:  log.ComponentHTTP,
	}
	for field, value := range want {
		if record[field] != value {
			t.Errorf("%s = %v, want %v", field, record[field], value)
		}
	}
}

func TestLogMutationFields(t *testing.T) {
	logger, buf := capturingLogger(t, "test")
	sl := log.NewStructuredLogger(logger)

	sl.LogMutation(context.Background(), "u1", "account", "create")

	record := lastRecord(t, buf)
	want := map[string]any{
		log.FieldUserID:    "u1",
		log.FieldEntity:    "account",
		log.FieldVerb:      "create",
		log.FieldComponent: log.ComponentLedger,
	}
	for field, value := range want {
		if record[field] != value {
			t.Errorf("%s = %v, want %v", field, record[field], value)
		}
	}
}
