package thread

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/canonical"
	"github.com/enrondata/maildir-etl/internal/core"
	"github.com/enrondata/maildir-etl/internal/parser"
)

// ErrChainTruncated reports that a quote chain exceeded the depth bound and
// was cut short. Recoverable; the truncated chain is still emitted.
var ErrChainTruncated = errors.New("quoted-message chain truncated")

// DefaultMarkers are the delimiter lines that introduce an embedded quoted
// message. Extensible via configuration; the corpus is not consistent about
// which client produced a given quote block.
var DefaultMarkers = []string{
	"-----Original Message-----",
	"---------------------- Forwarded by",
}

const DefaultMaxDepth = 10

type Options struct {
	Markers  []string
	MaxDepth int
}

// Splitter decomposes a parsed message body into a chain of independent
// message records: the outermost content is the child, each embedded quote
// block becomes a parent, which may itself embed a grandparent.
type Splitter struct {
	markers  []string
	maxDepth int
	logger   *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Splitter {
	markers := opts.Markers
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Splitter{markers: markers, maxDepth: maxDepth, logger: logger}
}

// Split turns one parsed file into its parent/child chain, child first.
// Each returned record carries its fingerprint and, except for the deepest
// ancestor, a ParentFingerprint link. truncated reports that the depth
// bound cut the chain; the final kept segment is then an unparented leaf.
func (s *Splitter) Split(pm *core.ParsedMessage) (msgs []*core.CanonicalMessage, truncated bool, err error) {
	date, _, err := parser.ParseDate(pm.Headers.Get(core.HeaderDate))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", parser.ErrMalformed, err)
	}

	segments := s.splitBody(pm.Body)
	sender := parser.Sender(pm)
	subject := strings.TrimSpace(pm.Headers.Get(core.HeaderSubject))
	body := strings.TrimSpace(segments[0])

	child := &core.CanonicalMessage{
		Fingerprint:   canonical.Fingerprint(sender, date, subject, body),
		Date:          date,
		RawSender:     sender,
		RawRecipients: parser.Recipients(pm),
		Subject:       subject,
		Body:          body,
	}
	msgs = []*core.CanonicalMessage{child}

	cur := child
	// A segment without its own offset is resolved in its enclosing
	// message's zone. Approximation: the two are assumed consistent.
	loc := date.Location()

	for depth, segment := range segments[1:] {
		if depth >= s.maxDepth {
			truncated = true
			s.logger.Warn("quote chain exceeds depth bound, truncating",
				zap.String("fingerprint", child.Fingerprint),
				zap.Int("max_depth", s.maxDepth),
				zap.Int("segments", len(segments)-1))
			break
		}
		parent, parentLoc, perr := s.parseSegment(segment, loc)
		if perr != nil {
			s.logger.Debug("unparsable embedded segment ends chain",
				zap.String("fingerprint", child.Fingerprint),
				zap.Int("depth", depth+1),
				zap.Error(perr))
			break
		}
		cur.ParentFingerprint = parent.Fingerprint
		msgs = append(msgs, parent)
		cur = parent
		loc = parentLoc
	}

	return msgs, truncated, nil
}

// splitBody cuts the body at every marker occurrence, in document order.
// The remainder of each marker line (e.g. the "Forwarded by ..." banner
// text) is discarded with the marker. The slice always has at least one
// element, the outermost content.
func (s *Splitter) splitBody(body string) []string {
	parts := []string{}
	rest := body
	for {
		idx, mlen := s.nextMarker(rest)
		if idx < 0 {
			parts = append(parts, rest)
			return parts
		}
		parts = append(parts, rest[:idx])
		rest = rest[idx+mlen:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		} else {
			rest = ""
		}
	}
}

func (s *Splitter) nextMarker(text string) (idx, length int) {
	idx = -1
	for _, marker := range s.markers {
		if i := strings.Index(text, marker); i >= 0 && (idx < 0 || i < idx) {
			idx = i
			length = len(marker)
		}
	}
	return idx, length
}

// parseSegment parses one embedded quote block into a message record. The
// nested header block runs up to and including the Subject line (Outlook
// quotes carry no blank line before the body); Sent takes the place of
// Date. loc resolves offset-less dates.
func (s *Splitter) parseSegment(segment string, loc *time.Location) (*core.CanonicalMessage, *time.Location, error) {
	headers, body, err := parseEmbedded(stripQuotePrefixes(segment))
	if err != nil {
		return nil, nil, err
	}

	dateStr := headers.Get(core.HeaderSent)
	if dateStr == "" {
		dateStr = headers.Get(core.HeaderDate)
	}
	if dateStr == "" {
		return nil, nil, fmt.Errorf("embedded segment has no Sent or Date line")
	}
	date, _, err := parser.ParseDateIn(dateStr, loc)
	if err != nil {
		return nil, nil, err
	}

	pm := &core.ParsedMessage{Headers: headers, Body: body, Status: core.StatusOK}
	sender := parser.Sender(pm)
	subject := strings.TrimSpace(headers.Get(core.HeaderSubject))
	body = strings.TrimSpace(body)

	msg := &core.CanonicalMessage{
		Fingerprint:   canonical.Fingerprint(sender, date, subject, body),
		Date:          date,
		RawSender:     sender,
		RawRecipients: parser.Recipients(pm),
		Subject:       subject,
		Body:          body,
	}
	return msg, date.Location(), nil
}

// parseEmbedded scans an embedded header block. It ends at the first blank
// line, at the Subject line, or at the first line that no longer looks
// like a header.
func parseEmbedded(segment string) (core.Header, string, error) {
	lines := strings.Split(segment, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	headers := make(core.Header)
	lastKey := ""
	bodyStart := len(lines)
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			bodyStart = i + 1
			break
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			headers.Set(lastKey, headers.Get(lastKey)+" "+strings.TrimSpace(line))
			continue
		}
		key, value, ok := parser.SplitHeaderLine(line)
		if !ok {
			bodyStart = i
			break
		}
		headers.Set(key, value)
		lastKey = key
		if strings.EqualFold(key, "Subject") {
			bodyStart = i + 1
			break
		}
	}

	if len(headers) == 0 {
		return nil, "", fmt.Errorf("embedded segment has no header block")
	}

	body := ""
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}
	return headers, body, nil
}

// stripQuotePrefixes removes "> " quoting prefixes line by line. The data
// feeds quantitative analysis, not text reconstruction, so a legitimate
// leading ">" in content is an accepted loss.
func stripQuotePrefixes(segment string) string {
	lines := strings.Split(segment, "\n")
	for i, line := range lines {
		for strings.HasPrefix(line, ">") {
			line = strings.TrimPrefix(line, ">")
			line = strings.TrimPrefix(line, " ")
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
