package canonical

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

// Fingerprint computes the stable content hash of one logical message: a
// normalized subset of headers (sender, date, subject) plus the raw body.
// Identical content yields the same fingerprint regardless of which folder
// the copy came from. Collisions are treated as identity; the dataset keys
// on the digest without a byte-for-byte verification.
func Fingerprint(sender string, date time.Time, subject, body string) string {
	h := md5.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(sender))))
	h.Write([]byte{0})
	h.Write([]byte(date.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(subject)))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

// Store accumulates canonical messages during the fan-out phase. The first
// occurrence of a fingerprint creates the record; later occurrences only
// add folder memberships. Safe for concurrent writers.
type Store struct {
	mu     sync.Mutex
	byFP   map[string]*core.CanonicalMessage
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		byFP:   make(map[string]*core.CanonicalMessage),
		logger: logger,
	}
}

// Add registers msg under its fingerprint. It returns false when the
// fingerprint was already present, in which case only the folder
// membership is recorded.
func (s *Store) Add(msg *core.CanonicalMessage, folder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byFP[msg.Fingerprint]
	if !ok {
		msg.Folders = []string{folder}
		s.byFP[msg.Fingerprint] = msg
		return true
	}

	for _, f := range existing.Folders {
		if f == folder {
			return false
		}
	}
	existing.Folders = append(existing.Folders, folder)
	s.logger.Debug("duplicate message collapsed",
		zap.String("fingerprint", msg.Fingerprint),
		zap.String("folder", folder))
	return false
}

// Get returns the canonical record for a fingerprint, if present.
func (s *Store) Get(fingerprint string) (*core.CanonicalMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byFP[fingerprint]
	return msg, ok
}

// Len reports the number of distinct canonical messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byFP)
}

// Sorted returns all canonical messages ordered by date, then fingerprint.
// The order is independent of worker scheduling, which keeps downstream id
// assignment reproducible across runs.
func (s *Store) Sorted() []*core.CanonicalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]*core.CanonicalMessage, 0, len(s.byFP))
	for _, msg := range s.byFP {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.Before(msgs[j].Date)
		}
		return msgs[i].Fingerprint < msgs[j].Fingerprint
	})
	for _, msg := range msgs {
		sort.Strings(msg.Folders)
	}
	return msgs
}
