package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestProductionWritesJSONWithContextIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	log.WithContext(ctx).Transition("stage.start", "client_id", "c-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"msg":        "workflow_transition",
		"op":         "stage.start",
		"request_id": "req-1",
		"user_id":    "user-1",
		"client_id":  "c-1",
	} {
		if rec[key] != want {
			t.Errorf("%s: got %v, want %q", key, rec[key], want)
		}
	}
}

func TestFailedAuthEventCarriesReason(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("development", &buf).AuthEvent("login", "otto", false, "bad password")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `reason="bad password"`) {
		t.Fatalf("unexpected record: %s", out)
	}
}

func TestProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Debug("noise")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %s", buf.String())
	}
}
