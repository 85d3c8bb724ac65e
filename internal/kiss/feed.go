package kiss

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"go.bug.st/serial"
)

// Porter is the minimal interface the feed needs from its transport.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// Feed reads a KISS byte stream from a transport and delivers complete
// AX.25 frame payloads on Frames. A single Monitor goroutine owns the
// splitter state.
type Feed struct {
	port    Porter
	frames  chan []byte
	cmdMu   sync.Mutex
	closing bool
	closeMu sync.Mutex
}

// NewFeed wraps an open transport in a Feed. The frames channel is
// buffered so a briefly slow consumer does not stall the reader.
func NewFeed(port Porter) *Feed {
	return &Feed{
		port:   port,
		frames: make(chan []byte, 64),
	}
}

// OpenSerial opens a serial-attached TNC at the given path and baud rate
// and returns a Feed reading from it.
func OpenSerial(path string, baud int) (*Feed, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewFeed(port), nil
}

// DialTCP connects to a network KISS endpoint (a software TNC or relay)
// and returns a Feed reading from it.
func DialTCP(addr string) (*Feed, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to KISS relay %s: %w", addr, err)
	}
	return NewFeed(conn), nil
}

// Frames returns the channel on which decoded frame payloads arrive.
func (f *Feed) Frames() <-chan []byte {
	return f.frames
}

// SendFrame writes an AX.25 frame to the transport with KISS framing.
func (f *Feed) SendFrame(ax25Data []byte, port int) error {
	f.cmdMu.Lock()
	defer f.cmdMu.Unlock()
	wire := BuildFrame(ax25Data, port)
	n, err := f.port.Write(wire)
	if err != nil {
		return err
	}
	if n != len(wire) {
		return fmt.Errorf("short write to TNC: %d of %d bytes", n, len(wire))
	}
	return nil
}

// SendCommand writes a TNC parameter command to the transport.
func (f *Feed) SendCommand(cmd Command, port int, value byte) error {
	wire := BuildCommand(cmd, port, value)
	if wire == nil {
		return fmt.Errorf("unknown KISS command %#02x", byte(cmd))
	}
	f.cmdMu.Lock()
	defer f.cmdMu.Unlock()
	if _, err := f.port.Write(wire); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}

// Monitor reads from the transport until the context is cancelled, the
// stream ends, or Close is called. Complete data frames are delivered on
// the Frames channel; the channel is closed on return.
func (f *Feed) Monitor(ctx context.Context) error {
	defer close(f.frames)

	var split Splitter
	buf := make([]byte, 4096)

	chunkChan := make(chan []byte)
	errChan := make(chan error, 1)

	// The blocking Read runs in its own goroutine so the outer loop can
	// honour context cancellation.
	go func() {
		defer close(chunkChan)
		for {
			n, err := f.port.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunkChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case errChan <- err:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errChan:
			return err

		case chunk, ok := <-chunkChan:
			if !ok {
				return nil
			}
			f.closeMu.Lock()
			if f.closing {
				f.closeMu.Unlock()
				return nil
			}
			f.closeMu.Unlock()

			for _, frame := range split.Push(chunk) {
				select {
				case f.frames <- frame:
				default:
					// drop rather than stall the reader
				}
			}
		}
	}
}

// Close stops delivery and closes the underlying transport.
func (f *Feed) Close() error {
	f.closeMu.Lock()
	f.closing = true
	f.closeMu.Unlock()
	return f.port.Close()
}
