package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	return m
}

func TestLogEvent_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "hub")

	l.LogEvent("warn", "delivery_failed", "3f2a9c1e-aaaa-bbbb-cccc-000000000000", "send timeout")

	m := decodeLine(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level: got %v, want warn", m["level"])
	}
	if m["event"] != "delivery_failed" {
		t.Errorf("event: got %v", m["event"])
	}
	if m["client_id"] != "3f2a9c1e-aaaa-bbbb-cccc-000000000000" {
		t.Errorf("client_id: got %v", m["client_id"])
	}
	if m["component"] != "hub" {
		t.Errorf("component: got %v", m["component"])
	}
	msg, _ := m["message"].(string)
	if !strings.Contains(msg, "3f2a9c1e") || !strings.Contains(msg, "send timeout") {
		t.Errorf("message: got %q", msg)
	}
}

func TestLogEvent_UnknownEventUsesName(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "api")

	l.LogEvent("info", "limits_updated", "", "max_clients=10")

	m := decodeLine(t, &buf)
	if m["message"] != "limits updated: max_clients=10" {
		t.Errorf("message: got %v", m["message"])
	}
	if _, ok := m["client_id"]; ok {
		t.Error("client_id should be omitted when empty")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "server").WithFields(map[string]interface{}{"addr": ":8080"})
	l.Info("listening")

	m := decodeLine(t, &buf)
	if m["addr"] != ":8080" {
		t.Errorf("addr: got %v", m["addr"])
	}
}

func TestNop_Discards(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.LogEvent("error", "client_connected", "x", "")
}

func TestShortID(t *testing.T) {
	cases := map[string]string{
		"":                                     "client",
		"abc":                                  "abc",
		"3f2a9c1e-aaaa-bbbb-cccc-000000000000": "3f2a9c1e",
	}
	for in, want := range cases {
		if got := shortID(in); got != want {
			t.Errorf("shortID(%q) = %q, want %q", in, got, want)
		}
	}
}
