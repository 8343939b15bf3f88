package metadb

import (
	"database/sql"
	"fmt"

	"github.com/little-pan/sqlite-server/engine"
)

// Store is the meta database handle: a dedicated single-writer /
// pooled-reader *sql.DB pair opened the same way engine.Open opens any
// other database (spec §4.2 "stored as a separate file-backed
// database").
type Store struct {
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Alias   string // schema alias this store is ATTACHed as on a processor's connection
	Path    string // file path, used to ATTACH this store onto a processor's own connection
}

// DefaultAlias is used when a processor ATTACHes the meta database to
// its own connection to run meta statements transactionally alongside
// user statements.
const DefaultAlias = "meta"

// Open opens (and initializes the schema of) the meta database file at
// path.
func Open(path string, busyTimeoutMS int) (*Store, error) {
	sess := &engine.SessionContext{User: "meta", Host: "local", Database: DefaultAlias}
	writeDB, err := engine.Open(path, busyTimeoutMS, sess, false)
	if err != nil {
		return nil, fmt.Errorf("open meta write db: %w", err)
	}
	readDB, err := engine.Open(path, busyTimeoutMS, sess, true)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("open meta read db: %w", err)
	}
	for _, ddl := range Schemas() {
		if _, err := writeDB.Exec(ddl); err != nil {
			writeDB.Close()
			readDB.Close()
			return nil, fmt.Errorf("init meta schema: %w", err)
		}
	}
	return &Store{WriteDB: writeDB, ReadDB: readDB, Alias: DefaultAlias, Path: path}, nil
}

// Close closes both connections.
func (s *Store) Close() {
	s.WriteDB.Close()
	s.ReadDB.Close()
}

// BootstrapSuperuser inserts the initial super-admin user row if the
// user table is empty, used by cmd/initdb.
func (s *Store) BootstrapSuperuser(host, user, password, protocol string) error {
	var count int
	if err := s.ReadDB.QueryRow("select count(*) from user").Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.WriteDB.Exec(
		"insert into user(host, user, password, protocol, auth_method, sa) values (?, ?, ?, ?, 'md5', 1)",
		host, user, password, protocol,
	)
	if err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	}
	return nil
}
