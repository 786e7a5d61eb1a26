package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

// MemoryStore is an in-memory implementation of the DatasetStore interface,
// used for tests and dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	logger     *zap.Logger
	messages   []*core.CanonicalMessage
	persons    []core.PersonIdentity
	aliases    []core.AliasMapping
	groups     []core.RecipientGroup
	unresolved []core.UnresolvedIdentityRecord
	parseErrs  []core.ParseError
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

func (s *MemoryStore) SaveMessages(ctx context.Context, msgs []*core.CanonicalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	return nil
}

func (s *MemoryStore) SavePersons(ctx context.Context, persons []core.PersonIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons = append(s.persons, persons...)
	return nil
}

func (s *MemoryStore) SaveAliases(ctx context.Context, aliases []core.AliasMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = append(s.aliases, aliases...)
	return nil
}

func (s *MemoryStore) SaveGroups(ctx context.Context, groups []core.RecipientGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, groups...)
	return nil
}

func (s *MemoryStore) SaveUnresolved(ctx context.Context, records []core.UnresolvedIdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unresolved = append(s.unresolved, records...)
	return nil
}

func (s *MemoryStore) SaveParseErrors(ctx context.Context, errs []core.ParseError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseErrs = append(s.parseErrs, errs...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Accessors for tests.

func (s *MemoryStore) Messages() []*core.CanonicalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

func (s *MemoryStore) Persons() []core.PersonIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persons
}

func (s *MemoryStore) Aliases() []core.AliasMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases
}

func (s *MemoryStore) Groups() []core.RecipientGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

func (s *MemoryStore) Unresolved() []core.UnresolvedIdentityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unresolved
}

func (s *MemoryStore) ParseErrors() []core.ParseError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseErrs
}
