// Package textutil provides small text helpers shared by the source loader
// and the Elixir front end.
package textutil

import (
	"bytes"
	"strings"
)

// BinarySniffLength is the number of leading bytes scanned for a NUL byte.
const BinarySniffLength = 8000

// IsBinary reports whether data has a NUL byte in its first
// BinarySniffLength bytes. Empty data is text.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// CountLines returns the number of lines in data, counting a trailing
// partial line.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	lines := bytes.Count(data, []byte{'\n'})

	if data[len(data)-1] != '\n' {
		lines++
	}

	return lines
}

// CollapseSpace replaces every run of whitespace with a single space and
// trims both ends.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// EscapeNewlines turns literal line breaks into \n escapes so multi-line
// literals render on one line.
func EscapeNewlines(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}

	replacer := strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`)

	return replacer.Replace(text)
}
