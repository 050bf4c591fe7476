// Package sanitize cleans free text received from the REPL, HTTP and MCP surfaces
// before it reaches a backlog or a ticket backend.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// DefaultMaxTitleSize bounds ticket titles.
	DefaultMaxTitleSize = 256
	// EnvMaxInputSize is the environment variable to override DefaultMaxInputSize
	EnvMaxInputSize = "ARBOR_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Input enforces the size limit, validates UTF-8 and strips control characters other
// than newline, tab and carriage return. Oversized input is rejected, never truncated.
func Input(input string) (string, error) {
	if err := check(input, maxInputSize()); err != nil {
		return "", err
	}
	return strip(input, isSafeControl), nil
}

// Title is Input for single-line text: every control character is dropped, runs of
// whitespace collapse to one space and the result is trimmed. An empty result is
// returned as is; deciding whether it is acceptable is up to the backlog.
func Title(title string) (string, error) {
	if err := check(title, DefaultMaxTitleSize); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(strip(title, isWhitespaceControl)), " "), nil
}

func check(s string, limit int) error {
	if len(s) > limit {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(s), limit)
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	return nil
}

// strip removes control characters for which keep reports false.
func strip(s string, keep func(rune) bool) string {
	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range s {
		if unicode.IsControl(r) && !keep(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsControl(r) || keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// isWhitespaceControl keeps controls that strings.Fields treats as separators.
func isWhitespaceControl(r rune) bool {
	return unicode.IsSpace(r)
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}

// Payload returns a copy of an event payload with every string value cleaned: the
// "title" field with Title, any other with Input.
func Payload(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		var err error
		if k == "title" {
			s, err = Title(s)
		} else {
			s, err = Input(s)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}
