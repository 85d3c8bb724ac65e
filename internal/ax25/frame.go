package ax25

import (
	"fmt"
	"strings"
	"time"
)

const (
	addressLen = 7  // shifted callsign (6) + SSID byte
	minFrame   = 15 // dest + source + control
)

// PID values seen after the control byte of I and UI frames.
const (
	PIDNetRom  = 0xCF
	PIDNoLayer = 0xF0
)

// Broadcast destinations that mark a UI frame as a beacon rather than
// station-to-station traffic.
var beaconDests = map[string]bool{
	"BEACON": true,
	"ID":     true,
	"CQ":     true,
	"ALL":    true,
	"QST":    true,
	"MAIL":   true,
}

// decodeAddress decodes one 7-byte AX.25 address field at offset.
// Callsign characters are stored shifted left one bit; the SSID byte's
// low bit marks the end of the address chain.
func decodeAddress(data []byte, offset int) (id StationID, last bool, next int, err error) {
	if len(data) < offset+addressLen {
		return "", true, offset, fmt.Errorf("truncated address at offset %d", offset)
	}

	call := make([]byte, 0, 6)
	for i := 0; i < 6; i++ {
		c := (data[offset+i] >> 1) & 0x7F
		if c != ' ' {
			call = append(call, c)
		}
	}

	ssidByte := data[offset+6]
	ssid := int(ssidByte>>1) & 0x0F
	last = ssidByte&0x01 != 0

	raw := string(call)
	if ssid != 0 {
		raw = fmt.Sprintf("%s-%d", raw, ssid)
	}
	id, _ = Normalize(raw)
	return id, last, offset + addressLen, nil
}

// uFrameTypes maps the control byte (with the P/F bit masked off) to
// unnumbered frame mnemonics.
var uFrameTypes = map[byte]string{
	0x2F: "SABM",
	0x6F: "SABME",
	0x0F: "DM",
	0x43: "DISC",
	0x63: "UA",
	0x03: "UI",
	0x87: "FRMR",
}

// classifyControl maps a control byte to a FrameClass and reports whether
// the frame type carries an information field.
func classifyControl(control byte) (FrameClass, bool) {
	if control&0x01 == 0 {
		return ClassData, true
	}
	if control&0x03 == 0x01 {
		switch (control >> 2) & 0x03 {
		case 0:
			return ClassAck, false
		case 1:
			return ClassBusy, false
		default: // REJ and SREJ
			return ClassReject, false
		}
	}
	switch uFrameTypes[control&0xEF] {
	case "UI":
		return ClassUnnumbered, true
	case "SABM", "SABME", "UA", "DISC", "DM", "FRMR":
		return ClassSession, false
	}
	return ClassUnknown, false
}

// Decode parses a raw AX.25 frame into a normalized PacketEvent stamped
// with ts. Unresolvable addresses come back as the zero StationID rather
// than an error; only a structurally truncated frame fails.
func Decode(data []byte, ts time.Time) (PacketEvent, error) {
	if len(data) < minFrame {
		return PacketEvent{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	// Address order on the wire is destination first, then source, then
	// zero or more digipeaters until the extension bit is set.
	dest, _, offset, err := decodeAddress(data, 0)
	if err != nil {
		return PacketEvent{}, err
	}
	source, last, offset, err := decodeAddress(data, offset)
	if err != nil {
		return PacketEvent{}, err
	}

	var via []StationID
	for !last && offset+addressLen <= len(data) {
		var hop StationID
		hop, last, offset, err = decodeAddress(data, offset)
		if err != nil {
			return PacketEvent{}, err
		}
		if hop != "" {
			via = append(via, hop)
		}
	}

	if offset >= len(data) {
		return PacketEvent{}, fmt.Errorf("frame missing control byte")
	}
	control := data[offset]
	offset++

	class, hasInfo := classifyControl(control)

	payloadLen := 0
	if hasInfo && offset < len(data) {
		pid := data[offset]
		offset++
		payloadLen = len(data) - offset

		if pid == PIDNetRom {
			class = ClassNetRom
		} else if class == ClassUnnumbered && beaconDests[dest.Callsign()] {
			class = ClassBeacon
		}
	}

	return PacketEvent{
		Timestamp:  ts,
		From:       source,
		To:         dest,
		Via:        via,
		Class:      class,
		HasInfo:    hasInfo && payloadLen > 0,
		PayloadLen: payloadLen,
	}, nil
}

// EncodeAddress encodes a callsign and SSID into the 7-byte shifted wire
// format. Used by test fixtures and the pcap replay tool.
func EncodeAddress(callsign string, ssid int, last bool) []byte {
	call := strings.ToUpper(callsign)
	for len(call) < 6 {
		call += " "
	}
	call = call[:6]
	out := make([]byte, 0, addressLen)
	for i := 0; i < 6; i++ {
		out = append(out, call[i]<<1)
	}
	ssidByte := byte(0x60) | byte(ssid&0x0F)<<1
	if last {
		ssidByte |= 0x01
	}
	return append(out, ssidByte)
}
