package engine

import "time"

// SessionContext carries the per-connection identity the server-wide SQL
// function registry (spec §4.6) answers from: user(), current_user(),
// database(), version(), start_time(). The server sets it once at login
// and does not change it for the life of the connection.
type SessionContext struct {
	User      string
	Host      string
	Database  string
	Version   string
	StartedAt time.Time
}

func (s *SessionContext) user() string     { return s.User + "@" + s.Host }
func (s *SessionContext) database() string { return s.Database }
func (s *SessionContext) version() string  { return s.Version }
func (s *SessionContext) startTime() string {
	return s.StartedAt.UTC().Format(time.RFC3339)
}

// sleep backs the SQL-visible SLEEP(seconds) function for the case where
// SLEEP appears nested inside a larger expression rather than as the
// recognized top-level trailing pattern the processor intercepts before
// ever reaching the engine (spec §4.4). It blocks the calling engine
// goroutine for the given duration and always returns 0.
func (s *SessionContext) sleep(seconds float64) int {
	if seconds > 0 {
		time.Sleep(time.Duration(seconds * float64(time.Second)))
	}
	return 0
}
