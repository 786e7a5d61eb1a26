package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

// SQLiteStore is a SQLite implementation of the DatasetStore interface.
// It is the default output target: a single self-contained, query-ready
// database file under the output directory.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	for _, ddl := range sqliteSchema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		fingerprint TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		date_utc TEXT NOT NULL,
		raw_sender TEXT,
		sender_id INTEGER NOT NULL,
		subject TEXT,
		body TEXT,
		parent_fingerprint TEXT,
		group_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS message_folders (
		fingerprint TEXT NOT NULL,
		folder TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS message_recipients (
		fingerprint TEXT NOT NULL,
		person_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		initial TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS person_aliases (
		person_id INTEGER NOT NULL,
		alias TEXT NOT NULL,
		generated INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alias_mappings (
		raw TEXT PRIMARY KEY,
		person_id INTEGER NOT NULL,
		method TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS recipient_groups (
		group_id INTEGER NOT NULL,
		person_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS unresolved_identities (
		fingerprint TEXT NOT NULL,
		raw_identity TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parse_errors (
		path TEXT NOT NULL,
		reason TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_fingerprint ON message_folders(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_fingerprint ON message_recipients(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_groups_id ON recipient_groups(group_id)`,
}

func (s *SQLiteStore) SaveMessages(ctx context.Context, msgs []*core.CanonicalMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO messages
		(fingerprint, date, date_utc, raw_sender, sender_id, subject, body, parent_fingerprint, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	folderStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO message_folders (fingerprint, folder) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare folder insert: %w", err)
	}
	defer folderStmt.Close()

	recipientStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO message_recipients (fingerprint, person_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare recipient insert: %w", err)
	}
	defer recipientStmt.Close()

	for _, msg := range msgs {
		parent := sql.NullString{String: msg.ParentFingerprint, Valid: msg.ParentFingerprint != ""}
		_, err := msgStmt.ExecContext(ctx,
			msg.Fingerprint,
			msg.Date.Format(time.RFC3339),
			msg.Date.UTC().Format(time.RFC3339),
			msg.RawSender,
			msg.SenderID,
			msg.Subject,
			msg.Body,
			parent,
			msg.GroupID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.Fingerprint, err)
		}
		for _, folder := range msg.Folders {
			if _, err := folderStmt.ExecContext(ctx, msg.Fingerprint, folder); err != nil {
				return fmt.Errorf("failed to insert folder membership: %w", err)
			}
		}
		for _, id := range msg.RecipientIDs {
			if _, err := recipientStmt.ExecContext(ctx, msg.Fingerprint, id); err != nil {
				return fmt.Errorf("failed to insert recipient: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	s.logger.Debug("messages written", zap.Int("count", len(msgs)))
	return nil
}

func (s *SQLiteStore) SavePersons(ctx context.Context, persons []core.PersonIdentity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	personStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO persons (id, first_name, last_name, initial) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare person insert: %w", err)
	}
	defer personStmt.Close()

	aliasStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO person_aliases (person_id, alias, generated) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare alias insert: %w", err)
	}
	defer aliasStmt.Close()

	for _, p := range persons {
		if _, err := personStmt.ExecContext(ctx, p.ID, p.FirstName, p.LastName, p.Initial); err != nil {
			return fmt.Errorf("failed to insert person %d: %w", p.ID, err)
		}
		for _, alias := range p.Aliases {
			if _, err := aliasStmt.ExecContext(ctx, p.ID, alias, 0); err != nil {
				return fmt.Errorf("failed to insert alias: %w", err)
			}
		}
		for _, alias := range p.GeneratedAliases {
			if _, err := aliasStmt.ExecContext(ctx, p.ID, alias, 1); err != nil {
				return fmt.Errorf("failed to insert generated alias: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit persons: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveAliases(ctx context.Context, aliases []core.AliasMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO alias_mappings (raw, person_id, method) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare mapping insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range aliases {
		if _, err := stmt.ExecContext(ctx, a.Raw, a.PersonID, string(a.Method)); err != nil {
			return fmt.Errorf("failed to insert mapping %q: %w", a.Raw, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alias mappings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveGroups(ctx context.Context, groups []core.RecipientGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipient_groups (group_id, person_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		for _, id := range g.PersonIDs {
			if _, err := stmt.ExecContext(ctx, g.ID, id); err != nil {
				return fmt.Errorf("failed to insert group member: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recipient groups: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveUnresolved(ctx context.Context, records []core.UnresolvedIdentityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unresolved_identities (fingerprint, raw_identity) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare unresolved insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Fingerprint, rec.RawIdentity); err != nil {
			return fmt.Errorf("failed to insert unresolved record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unresolved records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveParseErrors(ctx context.Context, errs []core.ParseError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parse_errors (path, reason) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare parse-error insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range errs {
		if _, err := stmt.ExecContext(ctx, e.Path, e.Reason); err != nil {
			return fmt.Errorf("failed to insert parse error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parse errors: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
