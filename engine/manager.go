package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager owns the lifecycle of on-disk database files: opening a
// dedicated write/read connection pair per database, and creating or
// deleting a database file plus its -wal/-shm/-journal siblings. It
// holds no replication log and no CDC; spec Non-goals exclude those.
type Manager struct {
	mu        sync.Mutex
	dataDir   string
	busyMS    int
	databases map[string]*Database
}

// Database is one opened logical database: a single-writer connection
// (SetMaxOpenConns(1), BEGIN IMMEDIATE on write per spec §4.3) and a
// pooled read connection, mirroring the write/read split pattern.
type Database struct {
	Name    string
	Path    string
	WriteDB *sql.DB
	ReadDB  *sql.DB
}

func NewManager(dataDir string, busyTimeoutMS int) *Manager {
	return &Manager{
		dataDir:   dataDir,
		busyMS:    busyTimeoutMS,
		databases: make(map[string]*Database),
	}
}

// Open opens (creating if absent) the database file at path under sess's
// identity, wiring the SQL function registry from session.go.
func Open(path string, busyTimeoutMS int, sess *SessionContext, readOnly bool) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMS)
	if !readOnly {
		dsn += "&_txlock=immediate"
	}
	connector, err := newConnector(dsn, sess)
	if err != nil {
		return nil, fmt.Errorf("open connector for %s: %w", path, err)
	}
	db := sql.OpenDB(connector)
	if readOnly {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	} else {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Create opens a database at name, creating a previously nonexistent file.
// It is the engine-level half of CREATE DATABASE; the catalog row lives in
// metadb, not here (spec §9 Open Question (a): the caller must reconcile
// "file exists, no catalog row" itself rather than the engine silently
// papering over it).
func (m *Manager) Create(name string, dirOverride string, sess *SessionContext) (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.databases[name]; ok {
		return existing, nil
	}

	dir := m.dataDir
	if dirOverride != "" {
		dir = dirOverride
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".db")

	writeDB, err := Open(path, m.busyMS, sess, false)
	if err != nil {
		return nil, err
	}
	readDB, err := Open(path, m.busyMS, sess, true)
	if err != nil {
		writeDB.Close()
		return nil, err
	}

	db := &Database{Name: name, Path: path, WriteDB: writeDB, ReadDB: readDB}
	m.databases[name] = db
	log.Info().Str("database", name).Str("path", path).Msg("database opened")
	return db, nil
}

// Get returns an already-opened database, or false if it hasn't been
// opened this process yet.
func (m *Manager) Get(name string) (*Database, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.databases[name]
	return db, ok
}

// Drop closes and deletes a database file plus its -wal/-shm/-journal
// siblings (spec §1's explicit lifecycle requirement).
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	db, ok := m.databases[name]
	delete(m.databases, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("database %q is not open", name)
	}
	db.WriteDB.Close()
	db.ReadDB.Close()

	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(db.Path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s%s: %w", db.Path, suffix, err)
		}
	}
	log.Info().Str("database", name).Msg("database dropped")
	return nil
}

// Close closes every opened database's connections without deleting
// their files, used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, db := range m.databases {
		db.WriteDB.Close()
		db.ReadDB.Close()
		delete(m.databases, name)
	}
}

// Exists reports whether a database file already exists on disk at the
// given directory, independent of whether this process has opened it ,
// used to resolve spec §9 Open Question (a).
func Exists(dataDir, dirOverride, name string) bool {
	dir := dataDir
	if dirOverride != "" {
		dir = dirOverride
	}
	_, err := os.Stat(filepath.Join(dir, name+".db"))
	return err == nil
}
