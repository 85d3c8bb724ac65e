package kiss

import (
	"bytes"
	"testing"
)

func TestEscapeRoundTrip(t *testing.T) {
	tests := [][]byte{
		{0x01, 0x02, 0x03},
		{FEND},
		{FESC},
		{FEND, FESC, FEND},
		{0x00, FESC, TFEND, TFESC, FEND, 0xFF},
		{},
	}

	for _, data := range tests {
		got := Unescape(Escape(data))
		if !bytes.Equal(got, data) {
			t.Errorf("round trip of % x = % x", data, got)
		}
	}
}

func TestEscapeSpecialBytes(t *testing.T) {
	got := Escape([]byte{FEND})
	want := []byte{FESC, TFEND}
	if !bytes.Equal(got, want) {
		t.Errorf("Escape(FEND) = % x, want % x", got, want)
	}

	got = Escape([]byte{FESC})
	want = []byte{FESC, TFESC}
	if !bytes.Equal(got, want) {
		t.Errorf("Escape(FESC) = % x, want % x", got, want)
	}
}

func TestBuildFrame(t *testing.T) {
	frame := BuildFrame([]byte{0x01, 0x02}, 0)
	want := []byte{FEND, 0x00, 0x01, 0x02, FEND}
	if !bytes.Equal(frame, want) {
		t.Errorf("BuildFrame = % x, want % x", frame, want)
	}

	// Port number occupies the high nibble of the command byte.
	frame = BuildFrame([]byte{0x01}, 2)
	if frame[1] != 0x20 {
		t.Errorf("command byte = %#02x, want 0x20", frame[1])
	}
}

func TestSplitterSingleFrame(t *testing.T) {
	var s Splitter
	wire := BuildFrame([]byte{0x0A, 0x0B, 0x0C}, 0)

	frames := s.Push(wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x0A, 0x0B, 0x0C}) {
		t.Errorf("frame = % x", frames[0])
	}
}

func TestSplitterChunked(t *testing.T) {
	var s Splitter
	wire := BuildFrame([]byte{0x0A, FEND, 0x0C}, 0)

	// Deliver the wire bytes one at a time.
	var frames [][]byte
	for _, b := range wire {
		frames = append(frames, s.Push([]byte{b})...)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x0A, FEND, 0x0C}) {
		t.Errorf("frame = % x", frames[0])
	}
}

func TestSplitterMultipleFrames(t *testing.T) {
	var s Splitter
	wire := append(BuildFrame([]byte{0x01}, 0), BuildFrame([]byte{0x02}, 0)...)

	frames := s.Push(wire)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
}

func TestSplitterDropsNonDataFrames(t *testing.T) {
	var s Splitter
	wire := BuildCommand(CmdTXDelay, 0, 30)
	if frames := s.Push(wire); len(frames) != 0 {
		t.Errorf("got %d frames from a command frame, want 0", len(frames))
	}
}

func TestBuildCommand(t *testing.T) {
	wire := BuildCommand(CmdTXDelay, 1, 30)
	want := []byte{FEND, 0x11, 30, FEND}
	if !bytes.Equal(wire, want) {
		t.Errorf("BuildCommand = % x, want % x", wire, want)
	}

	if BuildCommand(Command(0x42), 0, 0) != nil {
		t.Error("expected nil for unknown command")
	}
	if BuildCommand(CmdData, 0, 0) != nil {
		t.Error("expected nil for data command")
	}
}

func TestCommandNames(t *testing.T) {
	if CmdTXDelay.String() != "TXDELAY" {
		t.Errorf("CmdTXDelay.String() = %q", CmdTXDelay.String())
	}
	if Command(0x42).String() != "UNKNOWN" {
		t.Errorf("unknown command String() = %q", Command(0x42).String())
	}
	if !IsAllowed(CmdReturn) {
		t.Error("CmdReturn should be allowed")
	}
}
