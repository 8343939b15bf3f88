package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/little-pan/sqlite-server/engine"
	"github.com/little-pan/sqlite-server/metadb"
	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/little-pan/sqlite-server/srverr"
	"github.com/little-pan/sqlite-server/wire"
	"github.com/little-pan/sqlite-server/worker"
)

// onData is the protocol-layer hook the Worker calls after appending
// freshly read bytes to a processor's ReadBuffer (spec §4.6's framing,
// kept out of the worker package). It drains every complete frame
// currently buffered, parses its payload as SQL text, runs each
// statement through the processor's pipeline, queuing encoded replies
// (spec §4.4 step 7), then flushes the write queue once per pass (spec
// §4.4's write-side flow control).
func (s *Server) onData(c *worker.Conn) error {
	var d wire.Decoder
	var dispatchErr error
	for {
		frame, consumed, ok, err := d.Next(c.Proc.ReadBuffer)
		if err != nil {
			dispatchErr = err
			break
		}
		if !ok {
			break
		}
		c.Proc.ReadBuffer = c.Proc.ReadBuffer[consumed:]

		switch frame.Command {
		case wire.CmdQuery:
			s.dispatchQuery(c, string(frame.Payload), false)
		case wire.CmdPreparedQuery:
			s.dispatchQuery(c, string(frame.Payload), true)
		case wire.CmdQuit:
			dispatchErr = errConnQuit
		case wire.CmdPing:
			var enc wire.Encoder
			c.Proc.QueueWrite(enc.EncodeOK(0, 0))
		}
		if dispatchErr != nil {
			break
		}
	}

	sendAll := func(buf []byte) (int, error) {
		if err := c.Send(buf); err != nil {
			return 0, err
		}
		return len(buf), nil
	}
	if _, ferr := c.Proc.FlushWrites(sendAll); ferr != nil {
		return ferr
	}
	return dispatchErr
}

var errConnQuit = srverr.NewNetworkError(nil, "client requested connection close")

// isMetaCommand reports whether stmt.Command is one of the meta
// statements spec §4.2 renders against the ATTACHed meta schema rather
// than running as plain user SQL.
func isMetaCommand(cmd sqlparser.Command) bool {
	switch cmd {
	case sqlparser.CmdCreateUser, sqlparser.CmdAlterUser, sqlparser.CmdDropUser,
		sqlparser.CmdGrant, sqlparser.CmdRevoke,
		sqlparser.CmdCreateDatabase, sqlparser.CmdDropDatabase:
		return true
	default:
		return false
	}
}

// dispatchQuery parses payload into one or more statements and runs
// each in turn, queuing the outcome of each on the processor's write
// queue with QueueWrite before moving to the next (spec §4.1 "a batch of statements" / §4.4 the
// per-statement pipeline). prepared marks every statement in this batch
// as re-executable, the wire-level distinction spec §8's implicit-
// transaction invariant gates on (CmdQuery vs CmdPreparedQuery).
func (s *Server) dispatchQuery(c *worker.Conn, payload string, prepared bool) {
	var enc wire.Encoder
	p := sqlparser.NewParser(payload)
	for p.HasNext() {
		stmt, err := p.Next()
		if err != nil {
			c.Proc.QueueWrite(enc.EncodeError("42000", 1064, err.Error()))
			return
		}
		stmt.IsPrepared = prepared

		if stmt.Command == sqlparser.CmdKill {
			s.executeKill(c, stmt, &enc)
			continue
		}

		ctx := context.Background()

		if isMetaCommand(stmt.Command) {
			if err := c.Proc.AttachMeta(ctx, s.meta.Path); err != nil {
				var serr *srverr.Error
				if !errors.As(err, &serr) {
					serr = srverr.NewIOError(err, "%v", err)
				}
				c.Proc.QueueWrite(enc.EncodeError(serr.SQLSTATE, int(serr.Code), serr.Error()))
				continue
			}
			rendered, err := metadb.Render(stmt, metadb.DefaultAlias)
			if err != nil {
				c.Proc.QueueWrite(enc.EncodeError("42000", 1064, err.Error()))
				continue
			}
			stmt.ExecutableSQL = rendered
		}

		onRow := func(row engine.Row) error {
			c.Proc.QueueWrite(enc.EncodeRow(row.Values))
			return nil
		}
		start := time.Now()
		res, execErr := c.Proc.ExecuteStatement(ctx, stmt, s.busyTimeout(), onRow)
		if execErr != nil {
			var serr *srverr.Error
			if !errors.As(execErr, &serr) {
				serr = srverr.NewIOError(execErr, "%v", execErr)
			}
			if serr.Kind == srverr.KindBusy {
				s.metrics.WriteLockWaits.Inc()
				if res == nil && c.Proc.Busy == nil {
					s.metrics.BusyTimeouts.Inc()
				}
			} else {
				s.metrics.StatementErrors.Inc()
			}
			c.Proc.QueueWrite(enc.EncodeError(serr.SQLSTATE, int(serr.Code), serr.Error()))
			continue
		}
		if res == nil {
			// parked on a busy-context; the worker's busy-resume pass
			// will re-run this statement and send its own reply later.
			continue
		}
		s.metrics.StatementsExecuted.Inc()
		s.metrics.StatementLatency.Observe(time.Since(start).Seconds())
		if res.IsQuery {
			c.Proc.QueueWrite(enc.EncodeColumns(res.Columns))
		} else {
			c.Proc.QueueWrite(enc.EncodeOK(res.RowsAffected, res.LastInsertID))
		}
	}
}

// executeKill implements the KILL statement's scheduling-layer effect:
// find the target connection by id and cancel it. Spec §4.1 recognizes
// KILL at the parser only; the cancellation semantics follow §4.4's
// existing Processor.Cancel machinery. Every KILL is logged with a
// correlation id so an operator can line up the KILL command with the
// Cancel it triggered in the admin log stream.
func (s *Server) executeKill(c *worker.Conn, stmt *sqlparser.Statement, enc *wire.Encoder) {
	correlationID := uuid.New().String()
	targetID := stmt.Kill.ID

	s.mu.Lock()
	target, ok := s.conns[targetID]
	s.mu.Unlock()

	if !ok {
		s.log.Debug().Str("correlation_id", correlationID).Int64("target", targetID).Msg("kill: no such connection")
		c.Proc.QueueWrite(enc.EncodeError("HY000", 1094, "no such connection"))
		return
	}

	s.log.Info().Str("correlation_id", correlationID).Int64("target", targetID).
		Bool("query_only", stmt.Kill.Query).Msg("kill: canceling connection")
	target.Proc.Cancel(!stmt.Kill.Query)
	c.Proc.QueueWrite(enc.EncodeOK(0, 0))
}

func (s *Server) busyTimeout() time.Duration {
	return msToDuration(s.cfg.BusyMinWaitMS)
}
