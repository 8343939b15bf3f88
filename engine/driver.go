// Package engine adapts an embedded, file-backed SQLite engine to the
// minimal capability the server needs: open a connection, execute SQL,
// stream results, interrupt an in-progress statement, and manage the
// lifecycle of a database file and its WAL/SHM/journal siblings.
package engine

import (
	"context"
	"database/sql/driver"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

// dsnConnector adapts sqlite3.SQLiteDriver (which only implements
// driver.Driver, not driver.Connector) to driver.Connector by binding a
// fixed dsn, so sql.OpenDB can use it directly.
type dsnConnector struct {
	dsn    string
	driver *sqlite3.SQLiteDriver
}

func (c *dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.driver
}

// newConnector builds a driver.Connector bound to one SessionContext, so
// the SQL functions registered in its ConnectHook (user(), database(), …)
// answer for this connection specifically rather than a process-wide
// default. Each processor owns exactly one connection to its target
// database, so "per connector" and "per session" coincide.
func newConnector(dsn string, sess *SessionContext) (driver.Connector, error) {
	base := &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("regexp", regexpMatch, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("sleep", sess.sleep, false); err != nil {
				return err
			}
			if err := conn.RegisterFunc("user", sess.user, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("current_user", sess.user, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("database", sess.database, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("version", sess.version, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("start_time", sess.startTime, true); err != nil {
				return err
			}
			return nil
		},
	}
	return &dsnConnector{dsn: dsn, driver: base}, nil
}

// regexpMatch implements the REGEXP operator SQLite otherwise lacks.
func regexpMatch(pattern, text string) (bool, error) {
	return regexp.MatchString(pattern, text)
}
