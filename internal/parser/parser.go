package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/enrondata/maildir-etl/internal/core"
)

var (
	// ErrMalformed wraps any content-level defect that makes a file
	// unusable. Callers record it and move on; it never aborts a run.
	ErrMalformed = errors.New("malformed message")

	ErrNoHeaderBlock = errors.New("no header block found")
	ErrNoSender      = errors.New("no From or X-From header")
	ErrBadDate       = errors.New("unparsable Date header")
)

// Headers that vary between mailbox copies of the same message. They are
// stripped before fingerprinting so byte-identical content deduplicates
// across folders.
var volatileHeaderRe = regexp.MustCompile(`(?m)^(?:Message-ID|X-Folder|X-Origin|X-FileName):[^\n]*\n?`)

// Canonicalize normalizes line endings and strips per-copy headers so the
// same logical message hashes identically regardless of which mailbox it
// was found in.
func Canonicalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return volatileHeaderRe.ReplaceAllString(raw, "")
}

// Parse splits raw text into a header mapping and body. The header block
// ends at the first blank line; continuation lines (leading whitespace)
// fold into the previous header's value. Pure transformation, no side
// effects.
func Parse(raw string) (*core.ParsedMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	headers := make(core.Header)
	lastKey := ""
	bodyStart := -1

	for i, line := range lines {
		if line == "" {
			bodyStart = i + 1
			break
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			headers.Set(lastKey, headers.Get(lastKey)+" "+strings.TrimSpace(line))
			continue
		}
		key, value, ok := SplitHeaderLine(line)
		if !ok {
			if len(headers) == 0 {
				return &core.ParsedMessage{Status: core.StatusMalformed},
					fmt.Errorf("%w: %w", ErrMalformed, ErrNoHeaderBlock)
			}
			// Stray non-header line inside the block: treat it as the
			// start of the body. Seen in hand-mangled corpus files.
			bodyStart = i
			break
		}
		headers.Set(key, value)
		lastKey = key
	}

	if len(headers) == 0 {
		return &core.ParsedMessage{Status: core.StatusMalformed},
			fmt.Errorf("%w: %w", ErrMalformed, ErrNoHeaderBlock)
	}

	body := ""
	if bodyStart >= 0 && bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}

	return &core.ParsedMessage{
		Headers: headers,
		Body:    body,
		Status:  core.StatusOK,
	}, nil
}

// ParseMessage parses a top-level message and enforces the headers the
// rest of the pipeline depends on: a sender (From, falling back to X-From)
// and a parseable Date.
func ParseMessage(raw string) (*core.ParsedMessage, error) {
	pm, err := Parse(raw)
	if err != nil {
		return pm, err
	}
	if Sender(pm) == "" {
		pm.Status = core.StatusMalformed
		return pm, fmt.Errorf("%w: %w", ErrMalformed, ErrNoSender)
	}
	date := pm.Headers.Get(core.HeaderDate)
	if date == "" {
		pm.Status = core.StatusMalformed
		return pm, fmt.Errorf("%w: %w", ErrMalformed, ErrBadDate)
	}
	if _, _, err := ParseDate(date); err != nil {
		pm.Status = core.StatusMalformed
		return pm, fmt.Errorf("%w: %w: %q", ErrMalformed, ErrBadDate, date)
	}
	return pm, nil
}

// Sender returns the raw sender string, preferring From over X-From.
func Sender(pm *core.ParsedMessage) string {
	if v := strings.TrimSpace(pm.Headers.Get(core.HeaderFrom)); v != "" {
		return v
	}
	return strings.TrimSpace(pm.Headers.Get(core.HeaderXFrom))
}

// Recipients returns the merged To/Cc recipient strings, including the
// X-To and X-cc variants, deduplicated and order-preserving.
func Recipients(pm *core.ParsedMessage) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, key := range []string{core.HeaderTo, core.HeaderCc, core.HeaderXTo, core.HeaderXCc} {
		for _, addr := range AddressList(pm.Headers.Get(key)) {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

// SplitHeaderLine splits one "Key: value" line. ok is false for lines that
// do not look like a header.
func SplitHeaderLine(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = line[:idx]
	// Header names never contain spaces; "10:30 AM" is not a header.
	if strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}
