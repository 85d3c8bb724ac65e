package httputil

import (
	"errors"
	"io"
	"testing"
)

func TestMockClientQueuedResponses(t *testing.T) {
	m := NewMockClient().
		AddResponse(200, `{"ok":true}`).
		AddResponse(404, `{"error":"missing"}`).
		AddError(errors.New("connection refused"))

	resp, err := m.Get("http://localhost:8080/api/layout")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != `{"ok":true}` {
		t.Errorf("first response = %d %q", resp.StatusCode, body)
	}

	resp, err = m.Get("http://localhost:8080/api/graph")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("second status = %d, want 404", resp.StatusCode)
	}

	if _, err := m.Get("http://localhost:8080/api/summary"); err == nil {
		t.Error("third get did not return the queued error")
	}

	if len(m.URLs) != 3 || m.URLs[1] != "http://localhost:8080/api/graph" {
		t.Errorf("recorded urls = %v", m.URLs)
	}
}

func TestMockClientDefaultsToEmptyOK(t *testing.T) {
	m := NewMockClient()
	resp, err := m.Get("http://example.invalid/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("body = %q, want empty", body)
	}
}

func TestNewStandardClientNilFallback(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Client == nil {
		t.Error("nil http.Client was not defaulted")
	}
}
