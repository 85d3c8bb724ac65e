// Package kiss implements KISS TNC framing and a frame feed that reads a
// KISS byte stream from a serial port or TCP connection and emits raw
// AX.25 frames.
package kiss

// KISS special bytes.
const (
	FEND  = 0xC0 // frame delimiter
	FESC  = 0xDB // escape
	TFEND = 0xDC // transposed FEND
	TFESC = 0xDD // transposed FESC
)

// Escape transposes FEND and FESC bytes so a frame can be placed on the
// wire between FEND delimiters.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case FEND:
			out = append(out, FESC, TFEND)
		case FESC:
			out = append(out, FESC, TFESC)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Unescape reverses Escape. A trailing lone FESC is dropped; an FESC
// followed by anything other than TFEND/TFESC passes the second byte
// through, matching common TNC behaviour.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == FESC && i+1 < len(data) {
			switch data[i+1] {
			case TFEND:
				out = append(out, FEND)
			case TFESC:
				out = append(out, FESC)
			default:
				out = append(out, data[i+1])
			}
			i++
			continue
		}
		if data[i] != FESC {
			out = append(out, data[i])
		}
	}
	return out
}

// BuildFrame wraps an AX.25 frame in KISS framing for the given TNC port.
func BuildFrame(ax25Data []byte, port int) []byte {
	cmd := byte(port<<4) | byte(CmdData)
	out := make([]byte, 0, len(ax25Data)+4)
	out = append(out, FEND, cmd)
	out = append(out, Escape(ax25Data)...)
	return append(out, FEND)
}

// Splitter accumulates a KISS byte stream and splits it into complete
// frame payloads. It is a plain state machine with no locking; one
// reader owns it.
type Splitter struct {
	buf     []byte
	inFrame bool
}

// Push consumes a chunk of stream bytes and returns the payloads of any
// data frames completed by the chunk, unescaped and with the command byte
// stripped. Non-data frames (TNC parameter responses) are dropped.
func (s *Splitter) Push(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		if b == FEND {
			if s.inFrame && len(s.buf) > 1 {
				if Command(s.buf[0]&0x0F) == CmdData {
					frames = append(frames, Unescape(s.buf[1:]))
				}
			}
			s.buf = s.buf[:0]
			s.inFrame = true
			continue
		}
		if s.inFrame {
			s.buf = append(s.buf, b)
		}
	}
	return frames
}
