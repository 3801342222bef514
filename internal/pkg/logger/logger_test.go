package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice.smith@example.com", "al***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"@example.com", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogRedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)
	l.Log(INFO, "batch accepted", "email", "bob.jones@example.com", "count", 3)

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["email"] != "bo***@example.com" {
		t.Errorf("email not redacted: %q", entry["email"])
	}
	if entry["count"] != "3" {
		t.Errorf("count = %q", entry["count"])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)
	l.Log(INFO, "should be dropped")
	l.Log(ERROR, "should be kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("INFO entry emitted below threshold")
	}
	if !strings.Contains(out, "kept") {
		t.Error("ERROR entry missing")
	}
}

func TestLogMasksEmbeddedEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)
	l.Log(WARN, "send failed", "reason", "mailbox carol@example.com rejected")
	if strings.Contains(buf.String(), "carol@example.com") {
		t.Error("embedded email leaked into log output")
	}
}
