// Package worker implements the scheduler of spec §4.5: an intake
// queue, a bounded set of active processors, a busy-resume pass, and an
// idle-timeout sweep. Go has no raw selector the way the teacher's NIO
// original does, so the non-blocking multiplexer here is Go's own
// select statement over channels: each connection's socket owns one
// lightweight reader goroutine that only copies bytes into the
// Worker's event channel and carries no state of its own. Every
// mutation of processor/transaction/busy-context state happens inside
// the Worker's single event-loop goroutine, which preserves the
// "no two threads touch a processor concurrently" ownership invariant
// without a busy-spinning poll loop.
package worker

import (
	"context"
	"runtime"
	"time"

	"github.com/little-pan/sqlite-server/processor"
	"github.com/rs/zerolog"
)

// event is what a connection's reader goroutine hands to the Worker's
// event loop: either bytes it read, or an error/EOF that should stop
// the connection.
type event struct {
	conn *Conn
	data []byte
	err  error
}

// Conn pairs a processor with the plumbing the Worker needs to push
// bytes back out and to know when its socket is writable. OnData is
// the protocol layer's hook: the Worker only manages scheduling, it
// never parses wire frames itself (spec §4.5 owns I/O readiness, §4.6
// owns framing, kept separate the way the teacher keeps its selector
// loop and its MySQL codec in different packages).
type Conn struct {
	Proc    *processor.Processor
	Send    func([]byte) error
	Cancel  context.CancelFunc
	OnData  func(*Conn) error
	OnClose func(*Conn)
}

// Config mirrors the tunables of spec §4.5.
type Config struct {
	MaxConns         int
	IoRatio          int // valid (0,100]
	BusyMinWait      time.Duration
	IdleCheckInterval time.Duration
	AuthTimeout      time.Duration
	SleepTimeout     time.Duration
	SleepInTxTimeout time.Duration

	PinCPU   bool // best-effort CPU affinity for this worker's event loop (linux only)
	CPUIndex int
}

// Worker is the single-goroutine scheduler of spec §4.5. Name mirrors
// the teacher's per-worker naming for the observability contract
// ("every task sets the thread name to the processor's name").
type Worker struct {
	name   string
	cfg    Config
	log    zerolog.Logger

	intake chan *Conn
	events chan event
	stop   chan struct{}

	active map[int64]*Conn
	busy   map[int64]*Conn

	lastIdleCheck time.Time
}

func New(name string, cfg Config, log zerolog.Logger) *Worker {
	if cfg.IoRatio <= 0 || cfg.IoRatio > 100 {
		cfg.IoRatio = 50
	}
	if cfg.BusyMinWait <= 0 {
		cfg.BusyMinWait = 100 * time.Millisecond
	}
	return &Worker{
		name:   name,
		cfg:    cfg,
		log:    log.With().Str("worker", name).Logger(),
		intake: make(chan *Conn, cfg.MaxConns),
		events: make(chan event, cfg.MaxConns),
		stop:   make(chan struct{}),
		active: make(map[int64]*Conn),
		busy:   make(map[int64]*Conn),
	}
}

// Offer hands a freshly-accepted connection to this worker's intake
// queue (spec §4.5 "Intake pass"). It does not block past the queue's
// capacity; a full queue signals the caller should route elsewhere or
// reject with a too-many-connections error.
func (w *Worker) Offer(c *Conn) bool {
	select {
	case w.intake <- c:
		return true
	default:
		return false
	}
}

// Stop requests the event loop exit once current work drains (spec
// §4.5 "Shutdown").
func (w *Worker) Stop() {
	close(w.stop)
}

// Run is the main loop of spec §4.5. It owns every processor assigned
// to this worker for their entire lifetime.
func (w *Worker) Run() {
	if w.cfg.PinCPU {
		runtime.LockOSThread()
		if err := pinToCPU(w.cfg.CPUIndex); err != nil {
			w.log.Debug().Err(err).Int("cpu", w.cfg.CPUIndex).Msg("cpu affinity hint failed")
		}
	}

	w.lastIdleCheck = time.Now()
	idleInterval := w.cfg.IdleCheckInterval

	for {
		now := time.Now()
		if idleInterval > 0 && now.Sub(w.lastIdleCheck) >= idleInterval {
			idleInterval = w.sweepIdle(now)
			w.lastIdleCheck = now
		}

		timeout := w.nextSelectTimeout(now, idleInterval)

		select {
		case <-w.stop:
			if len(w.active) == 0 {
				w.closeAll()
				return
			}
			w.drainIntake()
			w.runBusyResume(time.Now())
		case ev := <-w.events:
			ioStart := time.Now()
			w.handleEvent(ev)
			w.budgetQueues(time.Since(ioStart))
		case c := <-w.intake:
			w.admit(c)
		case <-time.After(timeout):
			w.drainIntake()
			w.runBusyResume(time.Now())
		}
	}
}

// nextSelectTimeout implements spec §4.5 step 2: the minimum remaining
// time across busy processors, 0 when one is canceled or past its
// deadline, and never more than busyMinWait while any processor is busy.
// The busyMinWait cap applies whether or not a waiter is ready; it does
// not check whether the write lock a waiter wants is free.
func (w *Worker) nextSelectTimeout(now time.Time, idleInterval time.Duration) time.Duration {
	if len(w.busy) == 0 {
		if idleInterval > 0 {
			return idleInterval
		}
		return time.Second
	}
	min := time.Hour
	for _, c := range w.busy {
		bc := c.Proc.Busy
		if bc == nil {
			continue
		}
		if bc.Canceled {
			return 0
		}
		remaining := bc.RemainingUntilDeadline(now)
		if remaining <= 0 {
			return 0
		}
		if remaining < min {
			min = remaining
		}
	}
	if min > w.cfg.BusyMinWait {
		return w.cfg.BusyMinWait
	}
	return min
}

// handleEvent is the I/O pass of spec §4.5: readable data is appended
// to the processor's read buffer; an error or EOF stops the
// connection.
func (w *Worker) handleEvent(ev event) {
	if ev.err != nil {
		w.stopConn(ev.conn, ev.err)
		return
	}
	ev.conn.Proc.ReadBuffer = append(ev.conn.Proc.ReadBuffer, ev.data...)
	if ev.conn.OnData == nil {
		return
	}
	if err := ev.conn.OnData(ev.conn); err != nil {
		w.stopConn(ev.conn, err)
		return
	}
	if ev.conn.Proc.Busy != nil {
		w.MarkBusy(ev.conn.Proc.ID)
	}
}

// budgetQueues honors the ioRatio split of spec §4.5 step 4: after
// spending t on I/O, allow processQueues up to t*(100-ioRatio)/ioRatio.
// With ioRatio == 100 queues are unbounded this pass (budget zero read
// as "no extra limit" rather than "skip").
func (w *Worker) budgetQueues(ioTime time.Duration) {
	if w.cfg.IoRatio == 100 {
		w.drainIntake()
		w.runBusyResume(time.Now())
		return
	}
	budget := ioTime * time.Duration(100-w.cfg.IoRatio) / time.Duration(w.cfg.IoRatio)
	deadline := time.Now().Add(budget)
	w.drainIntake()
	if time.Now().Before(deadline) {
		w.runBusyResume(time.Now())
	}
}

// admit implements the intake pass: register the connection if the
// active set has room, else reject it with a too-many-connections
// error (spec §4.5).
func (w *Worker) admit(c *Conn) {
	if len(w.active) >= w.cfg.MaxConns {
		_ = c.Send([]byte("too many connections"))
		c.Cancel()
		return
	}
	w.active[c.Proc.ID] = c
	w.log.Debug().Int64("conn_id", c.Proc.ID).Msg("admitted")
}

func (w *Worker) drainIntake() {
	for {
		select {
		case c := <-w.intake:
			w.admit(c)
		default:
			return
		}
	}
}

// runBusyResume implements spec §4.5's "Busy resume pass": for each
// busy processor whose BusyContext is ready, deallocate its busy slot
// and re-run its saved continuation inline.
func (w *Worker) runBusyResume(now time.Time) {
	writeLockAvailable := func(c *Conn) bool {
		return c.Proc.WriteLock.HeldBy() == 0 || c.Proc.WriteLock.HeldBy() == c.Proc.ID
	}
	for id, c := range w.busy {
		bc := c.Proc.Busy
		if bc == nil {
			delete(w.busy, id)
			continue
		}
		if !bc.Ready(now, writeLockAvailable(c)) {
			continue
		}
		delete(w.busy, id)
		c.Proc.Busy = nil
		task := c.Proc.QueryTask
		c.Proc.QueryTask = nil
		if task != nil {
			if err := task(); err != nil {
				w.log.Debug().Int64("conn_id", id).Err(err).Msg("resumed task failed")
			}
		}
		if c.Proc.Busy != nil {
			w.busy[id] = c
		}
	}
}

// sweepIdle implements spec §4.5 step 1: compare each active
// processor's state-dwell-time against its configured timeout,
// stopping any that exceed it, and recomputes the next idle-check
// interval as the minimum positive configured timeout.
func (w *Worker) sweepIdle(now time.Time) time.Duration {
	for id, c := range w.active {
		var limit time.Duration
		switch c.Proc.State {
		case processor.StateAuth:
			limit = w.cfg.AuthTimeout
		case processor.StateSleep:
			limit = w.cfg.SleepTimeout
		case processor.StateSleepInTx:
			limit = w.cfg.SleepInTxTimeout
		default:
			continue
		}
		if limit <= 0 {
			continue
		}
		if now.Sub(c.Proc.SinceAt) >= limit {
			_ = c.Send([]byte("connection idle timeout"))
			w.stopConn(c, nil)
			delete(w.active, id)
		}
	}
	return w.minPositiveTimeout()
}

func (w *Worker) minPositiveTimeout() time.Duration {
	min := time.Duration(-1)
	for _, d := range []time.Duration{w.cfg.AuthTimeout, w.cfg.SleepTimeout, w.cfg.SleepInTxTimeout} {
		if d <= 0 {
			continue
		}
		if min < 0 || d < min {
			min = d
		}
	}
	return min
}

func (w *Worker) stopConn(c *Conn, cause error) {
	delete(w.active, c.Proc.ID)
	delete(w.busy, c.Proc.ID)
	c.Proc.Close()
	if c.Cancel != nil {
		c.Cancel()
	}
	if c.OnClose != nil {
		c.OnClose(c)
	}
	if cause != nil {
		w.log.Debug().Int64("conn_id", c.Proc.ID).Err(cause).Msg("connection stopped")
	}
}

func (w *Worker) closeAll() {
	for _, c := range w.active {
		c.Proc.Close()
		if c.Cancel != nil {
			c.Cancel()
		}
		if c.OnClose != nil {
			c.OnClose(c)
		}
	}
	w.active = make(map[int64]*Conn)
	w.busy = make(map[int64]*Conn)
}

// MarkBusy moves a connection from the active set into the busy set
// once its processor has parked on a BusyContext, called by handleEvent
// when the connection's OnData pass leaves Proc.Busy set.
func (w *Worker) MarkBusy(id int64) {
	if c, ok := w.active[id]; ok {
		w.busy[id] = c
	}
}

// PushEvent feeds bytes read by a connection's reader goroutine into
// the Worker's single event-loop goroutine.
func (w *Worker) PushEvent(c *Conn, data []byte, err error) {
	w.events <- event{conn: c, data: data, err: err}
}
