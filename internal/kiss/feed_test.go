package kiss

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

// mockPort implements Porter for testing the feed without hardware.
type mockPort struct {
	readData   []byte
	written    []byte
	readErr    error
	writeErr   error
	closed     bool
	blockAfter bool // block forever once readData is drained
}

func (m *mockPort) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if len(m.readData) == 0 {
		if m.blockAfter {
			select {} // emulate an idle serial line
		}
		return 0, io.EOF
	}
	n := copy(p, m.readData)
	m.readData = m.readData[n:]
	return n, nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func collectFrames(t *testing.T, f *Feed) [][]byte {
	t.Helper()
	var frames [][]byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-f.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-timeout:
			t.Fatal("timed out waiting for frames channel to close")
		}
	}
}

func TestFeedMonitorDeliversFrames(t *testing.T) {
	wire := append(BuildFrame([]byte{0x01, 0x02}, 0), BuildFrame([]byte{0x03}, 0)...)
	port := &mockPort{readData: wire}
	feed := NewFeed(port)

	done := make(chan error, 1)
	go func() { done <- feed.Monitor(context.Background()) }()

	frames := collectFrames(t, feed)
	if err := <-done; err != nil {
		t.Fatalf("Monitor returned error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x01, 0x02}) {
		t.Errorf("frame 0 = % x", frames[0])
	}
}

func TestFeedMonitorContextCancel(t *testing.T) {
	port := &mockPort{blockAfter: true}
	feed := NewFeed(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestFeedSendFrame(t *testing.T) {
	port := &mockPort{}
	feed := NewFeed(port)

	if err := feed.SendFrame([]byte{0x01, FEND}, 0); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}
	want := []byte{FEND, 0x00, 0x01, FESC, TFEND, FEND}
	if !bytes.Equal(port.written, want) {
		t.Errorf("wrote % x, want % x", port.written, want)
	}
}

func TestFeedSendCommand(t *testing.T) {
	port := &mockPort{}
	feed := NewFeed(port)

	if err := feed.SendCommand(CmdTXDelay, 0, 25); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if !bytes.Equal(port.written, []byte{FEND, 0x01, 25, FEND}) {
		t.Errorf("wrote % x", port.written)
	}

	if err := feed.SendCommand(Command(0x42), 0, 0); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestFeedClose(t *testing.T) {
	port := &mockPort{}
	feed := NewFeed(port)
	if err := feed.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}
}
