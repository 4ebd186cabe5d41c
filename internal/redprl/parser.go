package redprl

// parser.go: turns the line-oriented output of the redprl binary into RawMessages.

import (
	"regexp"
	"strconv"
	"strings"
)

// headerLine matches "<path>:<l1>.<c1>-<l2>.<c2> [Kind]:" at the start of a line.
var headerLine = regexp.MustCompile(`^(.*?):(\d+)\.(\d+)-(\d+)\.(\d+)\s*\[(Info|Output|Warning|Error)\]:?`)

// ParseMessages extracts every header block from response, in order.
// Lines that are neither headers nor indented body lines are skipped, so
// noisy or truncated output yields fewer messages rather than an error.
func ParseMessages(response string) []RawMessage {
	lines := strings.Split(response, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	var messages []RawMessage
	i := 0
	for i < len(lines) {
		msg, ok := parseHeader(lines[i])
		i++
		if !ok {
			continue
		}
		for i < len(lines) && isBodyLine(lines[i]) {
			msg.Content = append(msg.Content, lines[i][2:])
			i++
		}
		messages = append(messages, msg)
	}
	return messages
}

func parseHeader(line string) (RawMessage, bool) {
	m := headerLine.FindStringSubmatch(line)
	if m == nil {
		return RawMessage{}, false
	}
	var coords [4]int
	for j := range coords {
		n, err := strconv.Atoi(m[2+j])
		if err != nil {
			return RawMessage{}, false
		}
		coords[j] = n - 1
	}
	kind, ok := ParseKind(m[6])
	if !ok {
		return RawMessage{}, false
	}
	return RawMessage{
		Kind: kind,
		Path: m[1],
		Range: Range{
			Start: Position{Line: coords[0], Character: coords[1]},
			End:   Position{Line: coords[2], Character: coords[3]},
		},
	}, true
}

// isBodyLine reports whether line continues the current message.
func isBodyLine(line string) bool {
	return len(line) >= 2 && isIndent(line[0]) && isIndent(line[1])
}

func isIndent(b byte) bool {
	return b == ' ' || b == '\t'
}
