package ax25

import "time"

// FrameClass is a coarse classification of a decoded frame, used for
// traffic ratios and route-evidence weighting.
type FrameClass uint8

const (
	ClassUnknown FrameClass = iota
	ClassData               // I frame carrying user payload
	ClassUnnumbered         // UI frame (unconnected datagram)
	ClassBeacon             // UI frame addressed to a broadcast destination
	ClassNetRom             // NetRom routing broadcast (PID 0xCF)
	ClassAck                // RR supervisory frame
	ClassBusy               // RNR supervisory frame
	ClassReject             // REJ/SREJ supervisory frame
	ClassSession            // SABM/SABME/UA/DISC/DM/FRMR connection management
)

var classNames = map[FrameClass]string{
	ClassUnknown:    "unknown",
	ClassData:       "data",
	ClassUnnumbered: "ui",
	ClassBeacon:     "beacon",
	ClassNetRom:     "netrom",
	ClassAck:        "ack",
	ClassBusy:       "busy",
	ClassReject:     "reject",
	ClassSession:    "session",
}

func (c FrameClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// PacketEvent is the normalized record of a single observed frame. It is
// derived once from a decoded frame and never mutated; From and To are the
// zero StationID when the corresponding address could not be resolved.
type PacketEvent struct {
	Timestamp  time.Time
	From       StationID
	To         StationID
	Via        []StationID
	Class      FrameClass
	HasInfo    bool
	PayloadLen int
}
