package host

import "bytes"

// ScanTokens is a bufio.SplitFunc for the board's mixed stream: telemetry
// frames end in a NUL byte, status lines in a newline or carriage return.
// Both framings coexist; a token ends at whichever terminator comes first.
// Empty tokens (consecutive terminators, CRLF pairs) are skipped by the
// dispatcher.
func ScanTokens(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\x00\n\r"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
