package mudproto

import "strconv"

// ASCII control bytes referenced by the framing state machines.
const (
	charNUL byte = 0
	charBEL byte = 7
	charBS  byte = 8
	charHT  byte = 9
	charLF  byte = 10
	charVT  byte = 11
	charFF  byte = 12
	charCR  byte = 13
)

// Telnet command bytes (RFC 854 and friends).
const (
	cmdXEOF  byte = 236
	cmdSUSP  byte = 237
	cmdABORT byte = 238
	cmdEOR   byte = 239
	cmdSE    byte = 240
	cmdNOP   byte = 241
	cmdDM    byte = 242
	cmdBRK   byte = 243
	cmdIP    byte = 244
	cmdAO    byte = 245
	cmdAYT   byte = 246
	cmdEC    byte = 247
	cmdEL    byte = 248
	cmdGA    byte = 249
	cmdSB    byte = 250
	cmdWILL  byte = 251
	cmdWONT  byte = 252
	cmdDO    byte = 253
	cmdDONT  byte = 254
	cmdIAC   byte = 255
)

// isPlainCommand reports whether b is a one-byte Telnet command that
// carries no option and no subnegotiation (the COMMAND_BYTES set).
func isPlainCommand(b byte) bool {
	switch b {
	case cmdXEOF, cmdSUSP, cmdABORT, cmdEOR, cmdNOP, cmdDM, cmdBRK, cmdIP, cmdAO, cmdAYT, cmdEC, cmdEL, cmdGA:
		return true
	default:
		return false
	}
}

// isNegotiation reports whether b is one of WILL/WONT/DO/DONT.
func isNegotiation(b byte) bool {
	switch b {
	case cmdWILL, cmdWONT, cmdDO, cmdDONT:
		return true
	default:
		return false
	}
}

// Telnet option bytes relevant to this library (IANA telnet-options registry
// plus the MUD-specific extensions this stack negotiates).
const (
	OptTransmitBinary byte = 0
	OptEcho           byte = 1
	OptSGA            byte = 3
	OptTTYPE          byte = 24
	OptEndOfRecord    byte = 25
	OptNAWS           byte = 31
	OptLinemode       byte = 34
	OptNewEnviron     byte = 39
	OptCharset        byte = 42

	OptMSDP  byte = 69
	OptMSSP  byte = 70
	OptMCCP1 byte = 85
	OptMCCP2 byte = 86
	OptMCCP3 byte = 87
	OptMSP   byte = 90
	OptMXP   byte = 91
	OptZMP   byte = 93
	OptATCP  byte = 200
	OptGMCP  byte = 201
)

// descriptions maps option bytes to a short display name, mirroring the
// module-level DESCRIPTIONS table of the original implementation; it exists
// purely for diagnostics (log lines, error messages).
var descriptions = map[byte]string{
	OptTransmitBinary: "TRANSMIT_BINARY",
	OptEcho:           "ECHO",
	OptSGA:            "SGA",
	OptTTYPE:          "TTYPE",
	OptEndOfRecord:    "END_OF_RECORD",
	OptNAWS:           "NAWS",
	OptLinemode:       "LINEMODE",
	OptNewEnviron:     "NEW_ENVIRON",
	OptCharset:        "CHARSET",
	OptMSDP:           "MSDP",
	OptMSSP:           "MSSP",
	OptMCCP1:          "MCCP1",
	OptMCCP2:          "MCCP2",
	OptMCCP3:          "MCCP3",
	OptMSP:            "MSP",
	OptMXP:            "MXP",
	OptZMP:            "ZMP",
	OptATCP:           "ATCP",
	OptGMCP:           "GMCP",
}

// describeOption returns a human-readable name for an option byte, falling
// back to its numeric value for anything not in the table.
func describeOption(b byte) string {
	if name, ok := descriptions[b]; ok {
		return name
	}
	return "OPTION_" + strconv.Itoa(int(b))
}

// Charset subnegotiation sub-commands (RFC 2066).
const (
	charsetRequest  byte = 1
	charsetAccepted byte = 2
	charsetRejected byte = 3
)
