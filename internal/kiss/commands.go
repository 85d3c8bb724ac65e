package kiss

// Command is the low nibble of the KISS command byte.
type Command byte

// KISS command codes as defined by the TNC protocol.
const (
	CmdData        Command = 0x00 // data frame follows
	CmdTXDelay     Command = 0x01 // transmitter keyup delay, 10ms units
	CmdPersistence Command = 0x02 // CSMA persistence parameter p*256-1
	CmdSlotTime    Command = 0x03 // CSMA slot interval, 10ms units
	CmdTXTail      Command = 0x04 // time to hold TX after frame, 10ms units
	CmdFullDuplex  Command = 0x05 // 0 half duplex, nonzero full duplex
	CmdSetHardware Command = 0x06 // hardware-specific escape
	CmdReturn      Command = 0xFF // exit KISS mode
)

// commandNames is the allow list of parameter commands the feed will send
// to a TNC, with human-readable names for logging.
var commandNames = map[Command]string{
	CmdData:        "DATA",
	CmdTXDelay:     "TXDELAY",
	CmdPersistence: "P",
	CmdSlotTime:    "SLOTTIME",
	CmdTXTail:      "TXTAIL",
	CmdFullDuplex:  "FULLDUP",
	CmdSetHardware: "SETHW",
	CmdReturn:      "RETURN",
}

// IsAllowed reports whether cmd is a known KISS command code.
func IsAllowed(cmd Command) bool {
	_, ok := commandNames[cmd]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// BuildCommand builds a single-parameter KISS command frame for the given
// TNC port. Returns nil for unknown commands.
func BuildCommand(cmd Command, port int, value byte) []byte {
	if !IsAllowed(cmd) || cmd == CmdData {
		return nil
	}
	b := byte(cmd)
	if cmd != CmdReturn {
		b |= byte(port << 4)
	}
	return []byte{FEND, b, value, FEND}
}
