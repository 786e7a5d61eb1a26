package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

// MySQLStore is a MySQL implementation of the DatasetStore interface, for
// runs whose output feeds a shared database rather than a local file.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	for _, ddl := range mysqlSchema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		fingerprint VARCHAR(32) PRIMARY KEY,
		date VARCHAR(40) NOT NULL,
		date_utc VARCHAR(40) NOT NULL,
		raw_sender TEXT,
		sender_id INT NOT NULL,
		subject TEXT,
		body MEDIUMTEXT,
		parent_fingerprint VARCHAR(32),
		group_id INT NOT NULL,
		INDEX idx_messages_sender (sender_id),
		INDEX idx_messages_parent (parent_fingerprint)
	)`,
	`CREATE TABLE IF NOT EXISTS message_folders (
		fingerprint VARCHAR(32) NOT NULL,
		folder VARCHAR(255) NOT NULL,
		INDEX idx_folders_fingerprint (fingerprint)
	)`,
	`CREATE TABLE IF NOT EXISTS message_recipients (
		fingerprint VARCHAR(32) NOT NULL,
		person_id INT NOT NULL,
		INDEX idx_recipients_fingerprint (fingerprint)
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		id INT PRIMARY KEY,
		first_name VARCHAR(64),
		last_name VARCHAR(64),
		initial VARCHAR(8)
	)`,
	`CREATE TABLE IF NOT EXISTS person_aliases (
		person_id INT NOT NULL,
		alias VARCHAR(255) NOT NULL,
		generated TINYINT NOT NULL,
		INDEX idx_aliases_person (person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS alias_mappings (
		raw VARCHAR(255) PRIMARY KEY,
		person_id INT NOT NULL,
		method VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS recipient_groups (
		group_id INT NOT NULL,
		person_id INT NOT NULL,
		INDEX idx_groups_id (group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS unresolved_identities (
		fingerprint VARCHAR(32) NOT NULL,
		raw_identity TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parse_errors (
		path VARCHAR(512) NOT NULL,
		reason TEXT NOT NULL
	)`,
}

func (s *MySQLStore) SaveMessages(ctx context.Context, msgs []*core.CanonicalMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msgStmt, err := tx.PrepareContext(ctx, `
		REPLACE INTO messages
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

func (s *MySQLStore) SavePersons(ctx context.Context, persons []core.PersonIdentity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	personStmt, err := tx.PrepareContext(ctx, `
		REPLACE INTO persons (id, first_name, last_name, initial) VALUES (?, ?, ?, ?)
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

func (s *MySQLStore) SaveAliases(ctx context.Context, aliases []core.AliasMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		REPLACE INTO alias_mappings (raw, person_id, method) VALUES (?, ?, ?)
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

func (s *MySQLStore) SaveGroups(ctx context.Context, groups []core.RecipientGroup) error {
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

func (s *MySQLStore) SaveUnresolved(ctx context.Context, records []core.UnresolvedIdentityRecord) error {
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

func (s *MySQLStore) SaveParseErrors(ctx context.Context, errs []core.ParseError) error {
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

func (s *MySQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL connection: %w", err)
	}
	return nil
}
