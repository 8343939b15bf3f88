package metadb

import (
	"database/sql"
	"errors"
	"fmt"
)

// UserRecord is one row of the user table.
type UserRecord struct {
	Host       string
	User       string
	Password   string
	Protocol   string
	AuthMethod string
	Super      bool
}

// ErrUserNotFound is returned by LookupUser when no row matches.
var ErrUserNotFound = errors.New("metadb: user not found")

// LookupUser finds a user row by (host, user, protocol), the
// authentication path's password/auth-method lookup (spec §4.2).
func (s *Store) LookupUser(host, user, protocol string) (*UserRecord, error) {
	row := s.ReadDB.QueryRow(
		"select host, user, password, protocol, auth_method, sa from user where host = ? and user = ? and protocol = ?",
		host, user, protocol,
	)
	var rec UserRecord
	var sa int
	if err := row.Scan(&rec.Host, &rec.User, &rec.Password, &rec.Protocol, &rec.AuthMethod, &sa); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	rec.Super = sa != 0
	return &rec, nil
}

// HostAllowed reports whether any user row permits connections from
// host (spec §4.2 "host lookup for allow-listing"), matching either an
// exact host or the wildcard "%".
func (s *Store) HostAllowed(host string) (bool, error) {
	var count int
	err := s.ReadDB.QueryRow(
		"select count(*) from user where host = ? or host = '%'", host,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check allowed host: %w", err)
	}
	return count > 0, nil
}

// HasPrivilege reports whether (host, user) has been granted access to
// db, either directly or via the "all" wildcard row (spec §4.2
// "privilege lookup for access control"; see the renderGrant comment in
// render.go for why "all" collapses every database into one row).
func (s *Store) HasPrivilege(host, user, db string) (bool, error) {
	var count int
	err := s.ReadDB.QueryRow(
		"select count(*) from db where host = ? and user = ? and (db = ? or db = 'all')",
		host, user, db,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check privilege: %w", err)
	}
	return count > 0, nil
}

// CatalogDir returns the directory override recorded for db by CREATE
// DATABASE ... LOCATION, or "" if the catalog has no override (spec §9
// Open Question (a) is resolved by DatabaseState below, not here).
func (s *Store) CatalogDir(db string) (string, error) {
	var dir sql.NullString
	err := s.ReadDB.QueryRow("select dir from catalog where db = ?", db).Scan(&dir)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup catalog dir: %w", err)
	}
	return dir.String, nil
}

// DatabaseState distinguishes the three states CREATE DATABASE IF NOT
// EXISTS can find itself in (spec §9 Open Question (a)): a fresh name,
// a name already tracked in the catalog, or a name whose file exists on
// disk but has no catalog row, a state the engine and the meta
// database can each only partially observe, and which must be reported
// distinctly rather than silently treated as success.
type DatabaseState int

const (
	DatabaseUnknown      DatabaseState = iota // no catalog row, no file on disk
	DatabaseCataloged                         // catalog row exists
	DatabaseFileOrphaned                      // file on disk, but no catalog row, needs reconciliation
)

// ResolveDatabaseState inspects the catalog for db and reports which of
// the three states above applies, given whether its database file
// exists on disk (the caller supplies that from engine.Exists, since
// metadb itself does not know the data directory layout).
func (s *Store) ResolveDatabaseState(db string, fileExists bool) (DatabaseState, error) {
	var count int
	if err := s.ReadDB.QueryRow("select count(*) from catalog where db = ?", db).Scan(&count); err != nil {
		return DatabaseUnknown, fmt.Errorf("resolve database state: %w", err)
	}
	if count > 0 {
		return DatabaseCataloged, nil
	}
	if fileExists {
		return DatabaseFileOrphaned, nil
	}
	return DatabaseUnknown, nil
}
