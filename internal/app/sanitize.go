package app

import (
	"regexp"
	"strings"
)

var terminalEscapePatterns = []*regexp.Regexp{
	// CSI, including SGR mouse reports.
	regexp.MustCompile(`\x1b\[[<>?=]?[0-9;]*[A-Za-z@^` + "`" + `~{|}!]`),
	// OSC, BEL or ST terminated.
	regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`),
	// Charset designation.
	regexp.MustCompile(`\x1b[()][AB012]`),
	// Mouse reports that lost their ESC prefix.
	regexp.MustCompile(`\[<[0-9]+;[0-9]+;[0-9]+[Mm]`),
}

// textSanitizer strips terminal control sequences from model output and
// user input before it reaches the screen.
type textSanitizer struct {
	keepNewlines bool
	keepTabs     bool
	newlineWith  string
}

var (
	blockSanitizer = textSanitizer{keepNewlines: true, keepTabs: true}
	lineSanitizer  = textSanitizer{newlineWith: " "}
)

func (s textSanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range terminalEscapePatterns {
		input = pattern.ReplaceAllString(input, "")
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\n':
			if s.keepNewlines {
				b.WriteRune(r)
			} else {
				b.WriteString(s.newlineWith)
			}
		case r == '\t':
			if s.keepTabs {
				b.WriteRune(r)
			}
		case r < 32 || r == 127:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
