// Package repo reads authoritative quiz records and installs the change feed trigger
package repo

import (
	"context"
	"errors"
	"strings"

	"rolesync/internal/modkit/repokit"
	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/store"
	"rolesync/internal/services/allowlist/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the allowlist repository
type Storage interface {
	RecordByIdentity(ctx context.Context, identity string) (domain.Record, error)
	// ListPassed returns up to limit passed identities strictly after the given key, ascending
	ListPassed(ctx context.Context, after string, limit int) ([]string, error)
	InstallFeed(ctx context.Context, channel string) error
}

// discord_id is compared as text so the same queries work for text and bigint schemas
const (
	sqlRecordByIdentity = `
		SELECT COALESCE(status, '')
		FROM users
		WHERE discord_id::text = $1
		LIMIT 1`

	sqlListPassed = `
		SELECT discord_id::text
		FROM users
		WHERE lower(btrim(status)) = 'passed' AND discord_id::text > $1
		ORDER BY discord_id::text
		LIMIT $2`
)

// RecordByIdentity implements Storage. A missing row is unregistered, any status
// other than passed is pending
func (s *pg) RecordByIdentity(ctx context.Context, identity string) (domain.Record, error) {
	rec := domain.Record{Identity: identity, Status: domain.RecordUnregistered}

	status, err := store.One(ctx, s.q, scanString, sqlRecordByIdentity, identity)
	if errors.Is(err, perr.ErrNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, perr.FromPostgres(err, "lookup user record")
	}

	rec.Status = domain.RecordPending
	if strings.EqualFold(strings.TrimSpace(status), string(domain.RecordPassed)) {
		rec.Status = domain.RecordPassed
	}
	return rec, nil
}

// ListPassed implements Storage
func (s *pg) ListPassed(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, perr.InvalidArgf("limit must be positive, got %d", limit)
	}
	ids, err := store.Many(ctx, s.q, scanString, sqlListPassed, after, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list passed users")
	}
	return ids, nil
}

func scanString(r store.Row) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}
