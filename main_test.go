package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/kiss"
)

// rawUIFrame assembles a minimal AX.25 UI frame between two stations.
func rawUIFrame(source, dest string, payload []byte) []byte {
	frame := append([]byte{}, ax25.EncodeAddress(dest, 0, false)...)
	frame = append(frame, ax25.EncodeAddress(source, 0, true)...)
	frame = append(frame, 0x03, ax25.PIDNoLayer)
	return append(frame, payload...)
}

func TestDecodeBatch(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	frames := [][]byte{
		rawUIFrame("K0EPI", "N0CALL", []byte("hello")),
		{0x01, 0x02}, // too short to be a frame
		rawUIFrame("N0CALL", "K0EPI", []byte("reply")),
	}

	events := decodeBatch(frames, ts)
	if len(events) != 2 {
		t.Fatalf("decoded %d events, want 2 (malformed frame dropped)", len(events))
	}
	if events[0].From != "K0EPI" || events[0].To != "N0CALL" {
		t.Errorf("first event endpoints = %s -> %s", events[0].From, events[0].To)
	}
	if !events[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, ts)
	}
}

func TestReplayFixtures(t *testing.T) {
	var capture []byte
	capture = append(capture, kiss.BuildFrame(rawUIFrame("K0EPI", "N0CALL", []byte("one")), 0)...)
	capture = append(capture, kiss.BuildFrame(rawUIFrame("N0CALL", "K0EPI", []byte("two")), 0)...)

	path := filepath.Join(t.TempDir(), "capture.kiss")
	if err := os.WriteFile(path, capture, 0o644); err != nil {
		t.Fatal(err)
	}

	events, err := replayFixtures(path)
	if err != nil {
		t.Fatalf("replayFixtures: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("replayed %d events, want 2", len(events))
	}
	if events[1].From != "N0CALL" {
		t.Errorf("second event from = %s", events[1].From)
	}
}

func TestReplayFixturesMissingFile(t *testing.T) {
	if _, err := replayFixtures(filepath.Join(t.TempDir(), "nope.kiss")); err == nil {
		t.Error("expected error for missing fixture file")
	}
}
