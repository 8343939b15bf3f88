package processor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/little-pan/sqlite-server/coordinator"
	"github.com/little-pan/sqlite-server/engine"
	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/little-pan/sqlite-server/srverr"
	"github.com/rs/zerolog"
)

// QueryTask is a saved execution continuation: what to resume running
// once a busy-context becomes ready again (spec §4.4 step 4/6,
// "save the current query continuation into queryTask").
type QueryTask func() error

// Processor is the per-connection state machine of spec §4.4. It is
// owned exclusively by one Worker goroutine at a time; every method
// here assumes single-threaded access.
type Processor struct {
	ID       int64
	State    State
	SinceAt  time.Time

	User     string
	Host     string
	Database string
	Protocol string
	Super    bool

	Conn *sql.DB // the attached logical database's write connection
	Sess *engine.SessionContext

	// CheckPrivilege reports whether (Host, User) may access a database,
	// wired to metadb.Store.HasPrivilege by the server layer (spec §1
	// "enforces per-user privileges" / §4.4 step 3). Nil skips the check,
	// for tests that don't need it.
	CheckPrivilege func(host, user, db string) (bool, error)

	WriteLock *coordinator.WriteLock
	Tx        *coordinator.Transaction

	Busy      *coordinator.BusyContext
	QueryTask QueryTask

	ReadBuffer  []byte
	WriteQueue  [][]byte
	MaxReadBuf  int
	InitReadBuf int

	MaxWriteTimes  int
	MaxWriteQueue  int
	MaxWriteBuffer int

	Canceled     bool
	BusyTimeout  time.Duration

	MetaAttached bool // whether the meta database is currently ATTACHed on Conn (spec §4.2)

	log zerolog.Logger
}

// New constructs a Processor in state NEW.
func New(id int64, initReadBuf, maxReadBuf int, writeLock *coordinator.WriteLock, log zerolog.Logger) *Processor {
	return &Processor{
		ID:             id,
		State:          StateNew,
		SinceAt:        time.Now(),
		ReadBuffer:     make([]byte, 0, initReadBuf),
		InitReadBuf:    initReadBuf,
		MaxReadBuf:     maxReadBuf,
		MaxWriteTimes:  1024,
		MaxWriteQueue:  1024,
		MaxWriteBuffer: 4096,
		WriteLock:      writeLock,
		log:            log.With().Int64("conn_id", id).Logger(),
	}
}

// QueueWrite appends buf to the write queue (spec §4.4 step 7 "stream
// the result through the encoder into the write queue"). A small tail
// buffer is merged into the last queued buffer rather than appended
// separately when doing so stays within MaxWriteBuffer, reducing the
// eventual syscall count on flush.
func (p *Processor) QueueWrite(buf []byte) {
	if n := len(p.WriteQueue); n > 0 {
		last := p.WriteQueue[n-1]
		if len(last)+len(buf) <= p.MaxWriteBuffer {
			p.WriteQueue[n-1] = append(last, buf...)
			return
		}
	}
	p.WriteQueue = append(p.WriteQueue, buf)
}

// FlushWrites drains the write queue by calling write for each queued
// buffer, up to MaxWriteTimes attempts (spec §4.4's "Write-side flow
// control"). A short write re-queues the unwritten remainder at the
// front and stops the flush; the caller is expected to retry once the
// channel next reports writable. Returns true once the queue has fully
// drained.
func (p *Processor) FlushWrites(write func([]byte) (int, error)) (drained bool, err error) {
	attempts := 0
	for len(p.WriteQueue) > 0 && attempts < p.MaxWriteTimes {
		attempts++
		buf := p.WriteQueue[0]
		n, werr := write(buf)
		if n < len(buf) {
			p.WriteQueue[0] = buf[n:]
			return false, werr
		}
		p.WriteQueue = p.WriteQueue[1:]
		if werr != nil {
			return len(p.WriteQueue) == 0, werr
		}
	}
	return len(p.WriteQueue) == 0, nil
}

// transition records a state change along with its timestamp, consulted
// by the Worker's idle-timeout sweep (spec §4.4).
func (p *Processor) transition(s State) {
	if p.State != s {
		p.log.Debug().Stringer("from", p.State).Stringer("to", s).Msg("state transition")
	}
	p.State = s
	p.SinceAt = time.Now()
}

// Authenticate completes the AUTH state: look up (host, user, protocol),
// validate credentials, and either settle into SLEEP or report failure
// (spec §4.4 "Authentication"). Signature verification is delegated to
// verify, since the exact primitive is out of scope here.
func (p *Processor) Authenticate(host, user, protocol string, verify func() error) error {
	p.transition(StateAuth)
	if err := verify(); err != nil {
		return srverr.NewPermissionDenied("authentication failed for %s@%s: %v", user, host, err)
	}
	p.User, p.Host, p.Protocol = user, host, protocol
	p.transition(StateSleep)
	return nil
}

// ExecuteStatement runs the per-statement pipeline of spec §4.4 steps
// 3-8 for one already-parsed Statement. onRow streams result rows as
// they are produced; busyTimeout bounds how long a write waits for the
// lock before surfacing Busy.
func (p *Processor) ExecuteStatement(ctx context.Context, stmt *sqlparser.Statement, busyTimeout time.Duration, onRow func(engine.Row) error) (*engine.Result, error) {
	p.transition(StateRead)

	if err := p.checkPermission(stmt); err != nil {
		return nil, err
	}
	if err := p.checkReadOnly(stmt); err != nil {
		return nil, err
	}

	writable := p.isWritable(stmt)
	implicit := false

	if writable && p.WriteLock.HeldBy() != p.ID {
		if !p.WriteLock.TryLock(p.ID) {
			p.parkOnWriteLock(busyTimeout, func() error {
				_, err := p.ExecuteStatement(ctx, stmt, busyTimeout, onRow)
				return err
			})
			return nil, srverr.NewBusy(nil, "write lock held by another connection")
		}
	}

	if p.shouldBeginImplicitTx(stmt) {
		implicit = true
		p.Tx = coordinator.NewImplicitTransaction(stmt.Text)
		if _, err := p.Conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			p.Tx = nil
			return nil, srverr.FromSQLite(err, "BEGIN IMMEDIATE")
		}
	}

	if stmt.SleepSeconds > 0 {
		p.parkSleeping(time.Duration(stmt.SleepSeconds) * time.Second)
		return nil, nil
	}

	p.transition(StateBusy)
	sqlText := stmt.ExecutableSQL
	res, execErr := engine.Execute(ctx, p.Conn, sqlText, stmt.IsQuery, onRow)

	if execErr != nil {
		if srverr.Is(execErr, srverr.KindBusy) && busyTimeout != 0 {
			p.parkOnBusyRetry(busyTimeout, func() error {
				_, err := p.ExecuteStatement(ctx, stmt, busyTimeout, onRow)
				return err
			})
			return nil, execErr
		}
		if implicit {
			if _, rbErr := p.Conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
				p.log.Error().Err(rbErr).Msg("implicit rollback failed; closing connection")
				p.transition(StateClosed)
				return nil, fmt.Errorf("implicit rollback failed: %w", rbErr)
			}
			p.Tx = nil
		}
		p.transition(StateSleep)
		return nil, execErr
	}

	p.transition(StateWrite)

	if implicit {
		if _, err := p.Conn.ExecContext(ctx, "COMMIT"); err != nil {
			p.Tx = nil
			p.transition(StateSleep)
			return res, srverr.NewImplicitCommitError(err, "implicit commit failed")
		}
		p.Tx = nil
	}

	if writable && p.Tx == nil {
		p.WriteLock.Unlock(p.ID)
	}

	if p.Tx != nil {
		p.transition(StateSleepInTx)
	} else {
		p.detachMeta(ctx)
		p.transition(StateSleep)
	}
	return res, nil
}

// detachMeta implements §4.3's "Transaction completion always ...
// detaches the meta DB schema if attached": once auto-commit is
// restored, the ATTACHed alias from a meta statement no longer needs
// to stay resident on this connection.
func (p *Processor) detachMeta(ctx context.Context) {
	if !p.MetaAttached {
		return
	}
	if _, err := p.Conn.ExecContext(ctx, "DETACH DATABASE "+metaAliasIdent); err != nil {
		p.log.Debug().Err(err).Msg("detach meta schema failed")
		return
	}
	p.MetaAttached = false
}

const metaAliasIdent = "meta"

// AttachMeta ATTACHes the meta database file at path under the fixed
// "meta" alias on this processor's connection, idempotently (spec §4.2
// "Attach to any
// processor's connection under a deterministic schema alias"). The
// dispatch layer calls this ahead of rendering a meta-affecting
// statement; it stays here rather than in server/dispatch.go because
// MetaAttached is connection-lifetime state this Processor owns and
// must also clear on transaction completion.
func (p *Processor) AttachMeta(ctx context.Context, path string) error {
	if p.MetaAttached {
		return nil
	}
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := p.Conn.ExecContext(ctx, "ATTACH DATABASE "+quoted+" AS "+metaAliasIdent); err != nil {
		return srverr.FromSQLite(err, "ATTACH DATABASE")
	}
	p.MetaAttached = true
	return nil
}

// checkPermission enforces privilege checks; transaction statements
// bypass it, as does a super-admin connection, as does the GRANT/REVOKE-
// backed lookup itself when the server didn't wire one in (spec §4.4
// step 3).
func (p *Processor) checkPermission(stmt *sqlparser.Statement) error {
	if stmt.IsTransaction {
		return nil
	}
	if p.Super || p.CheckPrivilege == nil {
		return nil
	}
	ok, err := p.CheckPrivilege(p.Host, p.User, p.Database)
	if err != nil {
		return srverr.NewIOError(err, "privilege check failed: %v", err)
	}
	if !ok {
		return srverr.NewPermissionDenied("user %s@%s has no privilege on database %s", p.User, p.Host, p.Database)
	}
	return nil
}

// checkReadOnly rejects a writing statement inside a read-only
// transaction (spec §4.4 step 3).
func (p *Processor) checkReadOnly(stmt *sqlparser.Statement) error {
	if p.Tx == nil {
		return nil
	}
	if p.Tx.Mode.ReadOnly != nil && *p.Tx.Mode.ReadOnly && p.isWritable(stmt) {
		return srverr.NewReadOnlyViolation("write statement in read-only transaction")
	}
	return nil
}

// isWritable decides whether stmt requires the write lock: not a query,
// not a transaction-control statement (those mutate Tx bookkeeping
// directly, not engine rows).
func (p *Processor) isWritable(stmt *sqlparser.Statement) bool {
	return !stmt.IsQuery && !stmt.IsTransaction
}

// shouldBeginImplicitTx decides whether stmt needs an implicit BEGIN
// IMMEDIATE wrapper: spec §8's invariant restricts this to a prepared
// (re-executable), writable statement with auto-commit in effect at
// the start of the statement, grounded on original_source's
// SQLStatement.shouldBeginImplicitTx(), which gates the same way on
// this.prepared. A plain one-shot write still executes atomically
// under the engine's own auto-commit, it just never opens an explicit
// transaction this processor has to track.
func (p *Processor) shouldBeginImplicitTx(stmt *sqlparser.Statement) bool {
	return stmt.IsPrepared && p.isWritable(stmt) && p.Tx == nil
}

func (p *Processor) parkOnWriteLock(timeout time.Duration, task QueryTask) {
	p.Busy = coordinator.NewWriteLockBusyContext(timeout)
	p.QueryTask = task
	p.transition(StateBusy)
}

func (p *Processor) parkOnBusyRetry(timeout time.Duration, task QueryTask) {
	bc := coordinator.NewWriteLockBusyContext(timeout)
	bc.OnWriteLock = false
	p.Busy = bc
	p.QueryTask = task
	p.transition(StateBusy)
}

func (p *Processor) parkSleeping(d time.Duration) {
	p.Busy = coordinator.NewSleepBusyContext(d)
	if p.Tx != nil {
		p.transition(StateSleepInTx)
	} else {
		p.transition(StateSleep)
	}
}

// Cancel marks the busy-context (if any) canceled so the next scheduler
// pass resumes and fails the in-flight statement (spec §4.4
// "Cancellation"). wholeConnection additionally transitions to STOPPED
// once writes drain.
func (p *Processor) Cancel(wholeConnection bool) {
	p.Canceled = true
	if p.Busy != nil {
		p.Busy.Canceled = true
	}
	if wholeConnection {
		p.transition(StateStopped)
	}
}

// Close releases the write lock if held, detaches the transaction, and
// marks the processor CLOSED (spec §4.3 "Transaction completion" /
// §5 "Resource cleanup").
func (p *Processor) Close() {
	p.WriteLock.Unlock(p.ID)
	p.Tx = nil
	if p.Conn != nil {
		p.Conn.Close()
	}
	p.transition(StateClosed)
}
