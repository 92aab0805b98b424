package mudproto

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// escapeXMLEntities / unescapeXMLEntities mirror
// ESCAPE_XML_STR_ENTITIES / UNESCAPE_XML_BYTES_ENTITIES: order matters, "&"
// must be escaped first and unescaped last so "&amp;" never re-expands into
// something containing a bare "&".
var escapeXMLEntities = [][2]string{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
}

var unescapeXMLEntities = [][2][]byte{
	{[]byte("&gt;"), []byte(">")},
	{[]byte("&lt;"), []byte("<")},
	{[]byte("&amp;"), []byte("&")},
}

var numericEntityRegex = regexp.MustCompile(`&#(x?)([0-9a-zA-Z]+);`)

// escapeXMLString escapes &, <, > in text, grounded on utils.py's
// escapeXMLString (used when composing outgoing tagged text).
func escapeXMLString(text string) string {
	for _, pair := range escapeXMLEntities {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}
	return text
}

// unescapeXMLBytes resolves numeric/hex character references and the three
// named entities (&lt; &gt; &amp;) in data, grounded on utils.py's
// unescapeXMLBytes.
func unescapeXMLBytes(data []byte) []byte {
	data = numericEntityRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := numericEntityRegex.FindSubmatch(match)
		isHex := len(groups[1]) > 0
		base := 10
		if isHex {
			base = 16
		}
		value, err := strconv.ParseInt(string(groups[2]), base, 32)
		if err != nil {
			return match
		}
		return []byte{byte(value)}
	})
	for _, pair := range unescapeXMLEntities {
		data = bytes.ReplaceAll(data, pair[0], pair[1])
	}
	return data
}

// latinEncodingReplacements maps the Latin-1 supplement block (U+00A0 to
// U+00FF) to a single ASCII byte, per https://mume.org/help/latin1. Index 0
// corresponds to U+00A0.
var latinEncodingReplacements = [96]byte{
	' ', '!', 'c', 'L', '$', 'Y', '|', 'P', '"', 'C', 'a', '<', ',', '-', 'R', '-',
	'd', '+', '2', '3', '\'', 'u', 'P', '*', ',', '1', 'o', '>', '4', '2', '3', '?',
	'A', 'A', 'A', 'A', 'A', 'A', 'A', 'C', 'E', 'E', 'E', 'E', 'I', 'I', 'I', 'I',
	'D', 'N', 'O', 'O', 'O', 'O', 'O', '*', 'O', 'U', 'U', 'U', 'U', 'Y', 'T', 's',
	'a', 'a', 'a', 'a', 'a', 'a', 'a', 'c', 'e', 'e', 'e', 'e', 'i', 'i', 'i', 'i',
	'd', 'n', 'o', 'o', 'o', 'o', 'o', '/', 'o', 'u', 'u', 'u', 'u', 'y', 't', 'y',
}

// latin1FallbackByte returns the ASCII replacement for a Latin-1 supplement
// rune, and whether one exists.
func latin1FallbackByte(r rune) (byte, bool) {
	if r < 0x00a0 || r > 0x00ff {
		return '?', false
	}
	return latinEncodingReplacements[r-0x00a0], true
}

// decodeLatin1Fallback decodes data with an ASCII fast path; otherwise every
// byte above 0x7F is read as Latin-1 (no UTF-8 detection is attempted) and
// replaced with its ASCII approximation from the fallback table, or '?' for
// bytes outside the Latin-1 supplement block. This is used by the MPI handler when it hands edit-session
// bodies to the caller's file-I/O collaborator (the library itself performs
// no file I/O; only the byte transcoding is in scope).
func decodeLatin1Fallback(data []byte) string {
	isASCII := true
	for _, b := range data {
		if b > 0x7f {
			isASCII = false
			break
		}
	}
	if isASCII {
		return string(data)
	}
	out := make([]rune, 0, len(data))
	for _, b := range data {
		if b <= 0x7f {
			out = append(out, rune(b))
			continue
		}
		// Treat as Latin-1: byte value equals the Unicode code point.
		if repl, ok := latin1FallbackByte(rune(b)); ok {
			out = append(out, rune(repl))
		} else {
			out = append(out, '?')
		}
	}
	return string(out)
}

// encodeLatin1Fallback is the inverse of decodeLatin1Fallback: it encodes a
// string to bytes, replacing any rune outside ASCII with its Latin-1
// fallback byte (or '?' if it has none), grounded on utils.py's
// codecs.register_error("latin2ascii", ...) error handler.
func encodeLatin1Fallback(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r <= 0x7f {
			out = append(out, byte(r))
			continue
		}
		if repl, ok := latin1FallbackByte(r); ok {
			out = append(out, repl)
		} else {
			out = append(out, '?')
		}
	}
	return out
}
