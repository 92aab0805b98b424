package mudproto

import (
	"bytes"
	"regexp"
	"strings"
)

var directionsRegex = regexp.MustCompile(`dir=['"]?(north|east|south|west|up|down)`)

// directionFromMovement extracts the direction named in a self-closing
// <movement .../> tag.
func directionFromMovement(movement []byte) []byte {
	match := directionsRegex.FindSubmatch(movement)
	if match == nil {
		return nil
	}
	return match[1]
}

type xmlState int

const (
	xmlStateData xmlState = iota
	xmlStateTag
)

// XMLMode names the XML tag currently open, mirroring the nesting MUME's
// protocol allows (room contains name/description/exits/terrain; magic can
// appear anywhere).
type XMLMode int

const (
	XMLModeNone XMLMode = iota
	XMLModeDescription
	XMLModeExits
	XMLModeMagic
	XMLModeName
	XMLModePrompt
	XMLModeRoom
	XMLModeTerrain
)

var xmlModeNames = map[string]XMLMode{
	"description": XMLModeDescription,
	"exits":       XMLModeExits,
	"magic":       XMLModeMagic,
	"name":        XMLModeName,
	"prompt":      XMLModePrompt,
	"room":        XMLModeRoom,
	"terrain":     XMLModeTerrain,
}

func xmlModeFromTag(tag string) (XMLMode, bool) {
	mode, ok := xmlModeNames[strings.ToLower(tag)]
	return mode, ok
}

var tintinReplacements = map[string]bool{
	"prompt":  true,
	"name":    true,
	"tell":    true,
	"narrate": true,
	"pray":    true,
	"say":     true,
	"emote":   true,
}

// tintinTagReplacement returns the Tintin-style gag tag for an opening or
// closing tag name, or nil if tag is not one of the replaceable tags.
func tintinTagReplacement(tag []byte) []byte {
	isClosing := bytes.HasPrefix(tag, []byte("/"))
	trimmed := bytes.Trim(tag, "/")
	if !tintinReplacements[strings.ToLower(string(trimmed))] {
		return nil
	}
	upper := bytes.ToUpper(trimmed)
	if isClosing {
		return append([]byte(":"), upper...)
	}
	return append(upper, ':')
}

// XMLEventFunc receives decoded MUME XML events: room/name/description/
// exits/terrain/magic/dynamic/movement/prompt/line.
type XMLEventFunc func(name string, data []byte)

// XML implements the MUME XML tagging protocol: a tag/text state machine
// that lifts structured game events (room descriptions, prompts, exits,
// movement) out of the inline XML MUME interleaves with plain game text,
// and reformats the remaining plain text according to OutputFormat.
type XML struct {
	conn

	// OutputFormat controls how tag markup that isn't lifted into an event
	// is rendered into the plain-text stream: "raw" keeps the markup
	// in-line, "tintin" replaces a known subset of tags with Tintin gag
	// sequences, anything else (the default, "normal") drops markup
	// entirely.
	OutputFormat string
	// OnXMLEvent is called for every lifted XML event.
	OnXMLEvent XMLEventFunc

	state  xmlState
	appBuf []byte

	tagBuf     []byte
	textBuf    []byte
	dynamicBuf []byte
	lineBuf    []byte

	gratuitous  bool
	mode        XMLMode
	parentModes []XMLMode
}

// NewXML constructs an XML handler.
func NewXML(writer Writer, receiver Receiver, isClient bool, outputFormat string) *XML {
	return &XML{conn: newConn(writer, receiver, isClient), OutputFormat: outputFormat}
}

// OnConnectionMade turns on MUME's XML mode: mode "3" enables XML output
// without an initial "<xml>" tag, and option "G" wraps room descriptions in
// gratuitous tags when they would otherwise be hidden.
func (x *XML) OnConnectionMade() {
	out := append(append([]byte{}, mpiInit...), 'X', '2', charLF, '3', 'G', charLF)
	x.write(out)
}

func (x *XML) OnConnectionLost() {}

// OnDataReceived runs the tag/text state machine over data.
func (x *XML) OnDataReceived(data []byte) error {
	for len(data) > 0 {
		if x.state == xmlStateData {
			data = x.handleText(data)
		} else {
			data = x.handleTag(data)
		}
	}
	if len(x.appBuf) > 0 {
		out := x.appBuf
		x.appBuf = nil
		if x.OutputFormat != "raw" {
			out = unescapeXMLBytes(out)
		}
		x.receiver(out)
	}
	return nil
}

func (x *XML) handleText(data []byte) []byte {
	idx := bytes.IndexByte(data, '<')
	var appData, rest []byte
	hasTag := idx != -1
	if hasTag {
		appData, rest = data[:idx], data[idx+1:]
	} else {
		appData, rest = data, nil
	}
	if x.OutputFormat == "raw" || !x.gratuitous {
		x.appBuf = append(x.appBuf, appData...)
	}
	switch x.mode {
	case XMLModeNone:
		x.lineBuf = append(x.lineBuf, appData...)
		x.flushLines()
	case XMLModeRoom:
		x.dynamicBuf = append(x.dynamicBuf, appData...)
	default:
		x.textBuf = append(x.textBuf, appData...)
	}
	if hasTag {
		x.state = xmlStateTag
	}
	return rest
}

// flushLines splits lineBuf into complete lines (keeping terminators),
// emitting a "line" event for each non-blank one; an incomplete final line
// (no CR/LF yet) stays buffered for the next call.
func (x *XML) flushLines() {
	lines := splitKeepEnds(x.lineBuf)
	x.lineBuf = nil
	if len(lines) > 0 {
		last := lines[len(lines)-1]
		if !bytes.HasSuffix(last, []byte{charCR}) && !bytes.HasSuffix(last, []byte{charLF}) {
			x.lineBuf = append(x.lineBuf, last...)
			lines = lines[:len(lines)-1]
		}
	}
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			x.emit("line", unescapeXMLBytes(bytes.TrimRight(line, "\r\n")))
		}
	}
}

func splitKeepEnds(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == charLF {
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func (x *XML) handleTag(data []byte) []byte {
	idx := bytes.IndexByte(data, '>')
	var appData, rest []byte
	complete := idx != -1
	if complete {
		appData, rest = data[:idx], data[idx+1:]
	} else {
		appData, rest = data, nil
	}
	x.tagBuf = append(x.tagBuf, appData...)
	if !complete {
		return rest
	}
	tag := bytes.TrimSpace(x.tagBuf)
	x.tagBuf = nil
	var tagName string
	if len(tag) > 0 {
		fields := strings.Fields(strings.Trim(decodeLatin1Fallback(tag), "/"))
		if len(fields) > 0 {
			tagName = fields[0]
		}
	}
	isClosingTag := bytes.HasPrefix(tag, []byte("/"))

	switch x.OutputFormat {
	case "raw":
		x.appBuf = append(x.appBuf, '<')
		x.appBuf = append(x.appBuf, tag...)
		x.appBuf = append(x.appBuf, '>')
	case "tintin":
		if !x.gratuitous {
			if repl := tintinTagReplacement(tag); repl != nil {
				x.appBuf = append(x.appBuf, repl...)
			}
		}
	}

	lowerName := strings.ToLower(tagName)
	switch {
	case lowerName == "gratuitous":
		x.gratuitous = !isClosingTag
	case isClosingTag && sameMode(lowerName, x.mode):
		if x.mode == XMLModeRoom {
			x.emit("dynamic", unescapeXMLBytes(bytes.TrimLeft(x.dynamicBuf, "\r\n")))
			x.dynamicBuf = nil
		} else {
			x.emit(lowerName, unescapeXMLBytes(x.textBuf))
			x.textBuf = nil
		}
		x.mode = x.popMode()
	case lowerName == "magic":
		x.parentModes = append(x.parentModes, x.mode)
		x.mode = XMLModeMagic
	case x.mode == XMLModeNone && lowerName == "movement":
		x.emit("movement", directionFromMovement(unescapeXMLBytes(tag)))
	case x.mode == XMLModeNone:
		switch lowerName {
		case "prompt":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModePrompt
		case "room":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModeRoom
			var attributes []byte
			if len(tag) > 5 {
				attributes = tag[5:]
			}
			x.emit("room", unescapeXMLBytes(attributes))
		}
	case x.mode == XMLModeRoom:
		switch lowerName {
		case "name":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModeName
		case "description":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModeDescription
		case "exits":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModeExits
		case "terrain":
			x.parentModes = append(x.parentModes, x.mode)
			x.mode = XMLModeTerrain
		}
	}
	x.state = xmlStateData
	return rest
}

func sameMode(tagName string, mode XMLMode) bool {
	m, ok := xmlModeFromTag(tagName)
	return ok && m == mode
}

func (x *XML) popMode() XMLMode {
	if len(x.parentModes) == 0 {
		return XMLModeNone
	}
	last := x.parentModes[len(x.parentModes)-1]
	x.parentModes = x.parentModes[:len(x.parentModes)-1]
	return last
}

func (x *XML) emit(name string, data []byte) {
	if x.OnXMLEvent != nil {
		x.OnXMLEvent(name, data)
	}
}
