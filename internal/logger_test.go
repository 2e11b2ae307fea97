package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewLogger_CarriesServiceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "dev", "info", "billing")

	logger.Info("ready")

	if !strings.Contains(buf.String(), "service=billing") {
		t.Errorf("output missing service attribute: %q", buf.String())
	}
}

func TestNewLogger_ProdEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "info", "auth")

	logger.Info("ready")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "auth" {
		t.Errorf("service = %v", entry["service"])
	}
	ts, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("time %q is not RFC3339Nano: %v", ts, err)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "dev", "info", "")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted at info level: %q", buf.String())
	}

	logger = NewLogger(&buf, "dev", "debug", "")
	logger.Debug("visible")
	if buf.Len() == 0 {
		t.Error("debug line suppressed at debug level")
	}
}
