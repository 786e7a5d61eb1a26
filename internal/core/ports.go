package core

import (
	"context"
)

// DatasetStore is the output port for the canonical dataset. Implementations
// must tolerate being called once per table, after identity resolution has
// finalized every record.
type DatasetStore interface {
	// SaveMessages persists the canonical message records.
	SaveMessages(ctx context.Context, msgs []*CanonicalMessage) error

	// SavePersons persists the resolved person identities.
	SavePersons(ctx context.Context, persons []PersonIdentity) error

	// SaveAliases persists the raw-string to person-id mappings.
	SaveAliases(ctx context.Context, aliases []AliasMapping) error

	// SaveGroups persists the distinct recipient groups.
	SaveGroups(ctx context.Context, groups []RecipientGroup) error

	// SaveUnresolved persists the diagnostics for sentinel sender ids.
	SaveUnresolved(ctx context.Context, records []UnresolvedIdentityRecord) error

	// SaveParseErrors persists the per-file failure log.
	SaveParseErrors(ctx context.Context, errs []ParseError) error

	// Close releases any underlying resources.
	Close() error
}
