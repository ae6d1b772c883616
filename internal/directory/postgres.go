// Package directory is the durable side of the coordinator: the party
// record used for discovery and audit, the follower graph backing
// friends-only admission, and the append-only play-history log. The live
// queue itself lives in the remote document, not here.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"party-service/internal/party"
)

// DB is the subset of pgxpool.Pool the directory uses; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Directory struct {
	db  DB
	log zerolog.Logger
}

func New(db DB, log zerolog.Logger) *Directory {
	return &Directory{db: db, log: log.With().Str("component", "directory").Logger()}
}

// AutoMigrate creates the directory tables if they are missing.
func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS parties (
          id             TEXT PRIMARY KEY,
          name           TEXT NOT NULL DEFAULT '',
          host_id        TEXT NOT NULL,
          host_name      TEXT NOT NULL,
          access_code    TEXT NOT NULL DEFAULT '',
          admission_mode TEXT NOT NULL DEFAULT 'open',
          who_can_add    TEXT NOT NULL DEFAULT 'all',
          is_active      BOOLEAN NOT NULL DEFAULT TRUE,
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
          ended_at       TIMESTAMPTZ
      )
    `); err != nil {
		return fmt.Errorf("migrate parties: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_parties_access_code
      ON parties(access_code) WHERE is_active
    `); err != nil {
		return fmt.Errorf("migrate parties index: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS party_history (
          id               TEXT PRIMARY KEY,
          party_id         TEXT NOT NULL,
          song_id          TEXT NOT NULL,
          title            TEXT NOT NULL,
          artist           TEXT NOT NULL,
          played_by        TEXT NOT NULL,
          played_by_name   TEXT NOT NULL,
          played_at        TIMESTAMPTZ NOT NULL,
          play_duration_ms INT NOT NULL DEFAULT 0,
          was_skipped      BOOLEAN NOT NULL DEFAULT FALSE
      )
    `); err != nil {
		return fmt.Errorf("migrate party_history: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS user_follows (
          follower_id TEXT NOT NULL,
          followee_id TEXT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (follower_id, followee_id)
      )
    `); err != nil {
		return fmt.Errorf("migrate user_follows: %w", err)
	}
	return nil
}

// CreateParty inserts the durable record for a new party.
func (d *Directory) CreateParty(ctx context.Context, p *party.Party) error {
	_, err := d.db.Exec(ctx, `
      INSERT INTO parties(id, name, host_id, host_name, access_code, admission_mode, who_can_add, is_active, created_at)
      VALUES($1,$2,$3,$4,$5,$6,$7,TRUE,$8)
      ON CONFLICT (id) DO NOTHING
    `, p.ID, p.Name, p.HostID, p.HostName, p.AccessCode, string(p.AdmissionMode), string(p.WhoCanAddSongs), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("directory: create party: %w", err)
	}
	return nil
}

// MarkInactive flags the record when the host ends the party. The row is
// kept for the audit trail.
func (d *Directory) MarkInactive(ctx context.Context, partyID string) error {
	_, err := d.db.Exec(ctx, `
      UPDATE parties SET is_active = FALSE, ended_at = now() WHERE id = $1
    `, partyID)
	if err != nil {
		return fmt.Errorf("directory: mark inactive: %w", err)
	}
	return nil
}

// FindActiveByAccessCode resolves a normalized access code to a live party
// id. A miss is party.ErrPartyNotFound, never a generic error.
func (d *Directory) FindActiveByAccessCode(ctx context.Context, code string) (string, error) {
	var id string
	err := d.db.QueryRow(ctx, `
      SELECT id FROM parties WHERE access_code = $1 AND is_active
    `, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", party.ErrPartyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("directory: find by code: %w", err)
	}
	return id, nil
}

// IsFollowing reports whether followerID follows followeeID. Friends-only
// admission checks the joining user against the party host.
func (d *Directory) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `
      SELECT EXISTS(
        SELECT 1 FROM user_follows WHERE follower_id = $1 AND followee_id = $2
      )
    `, followerID, followeeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("directory: follow check: %w", err)
	}
	return exists, nil
}

// AppendHistory writes one played track to the audit log.
func (d *Directory) AppendHistory(ctx context.Context, partyID string, item party.HistoryItem) error {
	_, err := d.db.Exec(ctx, `
      INSERT INTO party_history(id, party_id, song_id, title, artist, played_by, played_by_name, played_at, play_duration_ms, was_skipped)
      VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
      ON CONFLICT (id) DO NOTHING
    `, item.ID, partyID, item.Song.ID, item.Song.Title, item.Song.Artist,
		item.PlayedBy, item.PlayedByName, item.PlayedAt, item.PlayDurationMs, item.WasSkipped)
	if err != nil {
		return fmt.Errorf("directory: append history: %w", err)
	}
	return nil
}

// HistoryForParty returns the audit log in play order.
func (d *Directory) HistoryForParty(ctx context.Context, partyID string) ([]party.HistoryItem, error) {
	rows, err := d.db.Query(ctx, `
      SELECT id, song_id, title, artist, played_by, played_by_name, played_at, play_duration_ms, was_skipped
      FROM party_history WHERE party_id = $1 ORDER BY played_at ASC
    `, partyID)
	if err != nil {
		return nil, fmt.Errorf("directory: load history: %w", err)
	}
	defer rows.Close()

	var items []party.HistoryItem
	for rows.Next() {
		var it party.HistoryItem
		if err := rows.Scan(
			&it.ID, &it.Song.ID, &it.Song.Title, &it.Song.Artist,
			&it.PlayedBy, &it.PlayedByName, &it.PlayedAt, &it.PlayDurationMs, &it.WasSkipped,
		); err != nil {
			d.log.Warn().Err(err).Msg("scan history row")
			continue
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
