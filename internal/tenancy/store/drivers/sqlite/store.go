package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite/gen"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db  *sql.DB
	q   *gen.Queries
	dsn string
}

// DSN builds a connection string for a database file. Transactions begin
// IMMEDIATE so the write lock is taken before the first read, which makes
// read-check-write sequences inside WithTx serialize across connections.
func DSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		path,
	)
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		q:   gen.New(db),
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return mapError(tx.Commit())
}

func (s *Store) Properties() store.Properties { return &propertiesRepo{q: s.q} }
func (s *Store) Invites() store.Invites       { return &invitesRepo{q: s.q} }
func (s *Store) Links() store.Links           { return &linksRepo{q: s.q} }
func (s *Store) Profiles() store.Profiles     { return &profilesRepo{q: s.q} }

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch code := serr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullMillisPtr(n sql.NullInt64) *time.Time {
	if n.Valid {
		val := fromMillis(n.Int64)
		return &val
	}
	return nil
}

func mapProperty(row gen.Property) domain.Property {
	return domain.Property{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Name:        row.Name,
		Category:    row.Category,
		AddressLine: row.AddressLine,
		City:        row.City,
		Region:      row.Region,
		PostalCode:  row.PostalCode,
		Country:     row.Country,
		CreatedAt:   fromMillis(row.CreatedAt),
	}
}

func mapInvite(row gen.Invite) domain.Invite {
	return domain.Invite{
		ID:               row.ID,
		TokenHash:        row.TokenHash,
		PropertyID:       row.PropertyID,
		CreatedBy:        row.CreatedBy,
		IntendedIdentity: mapNullString(row.IntendedIdentity),
		DeliveryMethod:   domain.DeliveryMethod(row.DeliveryMethod),
		CreatedAt:        fromMillis(row.CreatedAt),
		ExpiresAt:        fromMillis(row.ExpiresAt),
		AcceptedAt:       mapNullMillisPtr(row.AcceptedAt),
		AcceptedBy:       mapNullString(row.AcceptedBy),
	}
}

func mapLink(row gen.TenantLink) domain.TenantLink {
	l := domain.TenantLink{
		ID:         row.ID,
		IdentityID: row.IdentityID,
		PropertyID: row.PropertyID,
		InviteID:   mapNullString(row.InviteID),
		IsActive:   row.IsActive == 1,
		Status:     domain.LinkStatus(row.InvitationStatus),
		CreatedAt:  fromMillis(row.CreatedAt),
	}
	if row.AcceptedAt.Valid {
		l.AcceptedAt = fromMillis(row.AcceptedAt.Int64)
	}
	return l
}

func mapProfile(row gen.Profile) domain.Profile {
	return domain.Profile{
		ID:        row.ID,
		Email:     row.Email,
		Role:      domain.Role(row.Role),
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
}
