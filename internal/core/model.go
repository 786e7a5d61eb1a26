package core

import (
	"time"
)

// SentinelID marks an identity string that no resolution pass could match.
const SentinelID = -1

// Well-known header keys. Header access goes through these constants rather
// than free-form strings so a key mismatch is a compile error, not a silent
// empty lookup.
const (
	HeaderFrom  = "from"
	HeaderXFrom = "x-from"
	HeaderTo    = "to"
	HeaderCc    = "cc"
	HeaderXTo   = "x-to"
	HeaderXCc   = "x-cc"
	HeaderDate    = "date"
	HeaderSent    = "sent"
	HeaderSubject = "subject"
)

// ParseStatus reports whether a raw file yielded a usable message.
type ParseStatus int

const (
	StatusOK ParseStatus = iota
	StatusMalformed
)

// Header is a case-insensitive header mapping. Keys are stored lowercased.
type Header map[string]string

// Get returns the value for a header key, case-insensitively.
func (h Header) Get(key string) string {
	return h[normalizeKey(key)]
}

// Set stores a header value under the normalized key.
func (h Header) Set(key, value string) {
	h[normalizeKey(key)] = value
}

func normalizeKey(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ParsedMessage is the transient result of parsing one raw file or one
// embedded segment. It is discarded after canonicalization.
type ParsedMessage struct {
	Headers Header
	Body    string
	Status  ParseStatus
}

// CanonicalMessage is the deduplicated, authoritative message record.
// Created at dedup time, enriched in place with parent links and resolved
// identity ids, and persisted as the unit of output.
type CanonicalMessage struct {
	Fingerprint string
	Date        time.Time
	RawSender   string
	// To and Cc are merged into one recipient set. Usage of the two fields
	// is inconsistent in the source data, so the distinction is dropped.
	RawRecipients     []string
	Subject           string
	Body              string
	ParentFingerprint string
	Folders           []string

	SenderID     int
	RecipientIDs []int
	// GroupID identifies the resolved recipient set; the same set of
	// persons gets the same id on every message. SentinelID when no
	// recipient resolved.
	GroupID int
}

// RecipientGroup is one distinct set of resolved recipient ids, shared by
// every message addressed to exactly that set.
type RecipientGroup struct {
	ID        int
	PersonIDs []int
}

// PersonIdentity is one resolved canonical person.
type PersonIdentity struct {
	ID               int
	FirstName        string
	LastName         string
	Initial          string
	Aliases          []string
	GeneratedAliases []string
}

// ResolutionMethod records which pass produced an alias mapping.
type ResolutionMethod string

const (
	MethodExactEmail  ResolutionMethod = "exact-email"
	MethodNameMatch   ResolutionMethod = "name-match"
	MethodManualTable ResolutionMethod = "manual-table"
	MethodUnresolved  ResolutionMethod = "unresolved"
)

// AliasMapping maps one normalized raw identity string to a person id.
type AliasMapping struct {
	Raw      string
	PersonID int
	Method   ResolutionMethod
}

// UnresolvedIdentityRecord is the diagnostic output for a sender string
// that resolved to the sentinel id. It seeds the manual curation pass.
type UnresolvedIdentityRecord struct {
	Fingerprint string
	RawIdentity string
}

// ParseError records one file that failed parsing. The run continues.
type ParseError struct {
	Path   string
	Reason string
}

// RunStats summarizes one full pipeline run.
type RunStats struct {
	FilesScanned    int64
	FilesFailed     int64
	Messages        int64
	Duplicates      int64
	TruncatedChains int64
	Unresolved      int64
	Persons         int64
	Groups          int64
	FilesExcluded   int64
}
