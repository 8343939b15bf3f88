// Package server implements spec §4.6: the accept loop, worker
// fan-out, the handshake/login exchange of spec §6, the allow list,
// and the server-wide SQL function registry wiring. Adapted from the
// teacher's protocol.MySQLServer accept-loop shape, moved from
// goroutine-per-connection blocking I/O onto the worker/processor
// model (spec §9's Go-select redesign).
package server

import (
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/little-pan/sqlite-server/admin"
	"github.com/little-pan/sqlite-server/coordinator"
	"github.com/little-pan/sqlite-server/engine"
	"github.com/little-pan/sqlite-server/metadb"
	"github.com/little-pan/sqlite-server/processor"
	"github.com/little-pan/sqlite-server/telemetry"
	"github.com/little-pan/sqlite-server/wire"
	"github.com/little-pan/sqlite-server/worker"
	"github.com/rs/zerolog"
)

const serverVersion = "sqlite-server-1.0"
const protocolVersion = 1

// Config carries the server's top-level tunables, mirroring the CLI
// flags of spec §6.
type Config struct {
	Host          string
	Port          int
	DataDir       string
	WorkerCount   int
	MaxConns      int
	IoRatio       int
	BusyMinWaitMS int
	AuthMS        int
	SleepMS       int
	SleepInTxMS   int
	TraceLog      bool

	InitReadBuffer int
	MaxReadBuffer  int
	MaxWriteTimes  int
	MaxWriteQueue  int
	MaxWriteBuffer int

	PinCPU bool
}

// Server owns the process-wide write lock, the meta database handle,
// the allow list, and the pool of Workers connections are fanned out
// to (spec §4.6). It is never a package-level singleton: every shared
// resource is a field composed here (spec §9's "never a process-wide
// static" redesign note).
type Server struct {
	cfg     Config
	log     zerolog.Logger
	meta    *metadb.Store
	engines *engine.Manager
	wl      *coordinator.WriteLock
	metrics *telemetry.Metrics
	authCache *authCache

	workers []*worker.Worker

	connSeq atomic.Int64

	listener net.Listener

	mu    sync.Mutex
	conns map[int64]*worker.Conn
}

func New(cfg Config, meta *metadb.Store, log zerolog.Logger) *Server {
	if cfg.InitReadBuffer <= 0 {
		cfg.InitReadBuffer = 4096
	}
	if cfg.MaxReadBuffer <= 0 {
		cfg.MaxReadBuffer = 65536
	}
	if cfg.MaxWriteTimes <= 0 {
		cfg.MaxWriteTimes = 1024
	}
	if cfg.MaxWriteQueue <= 0 {
		cfg.MaxWriteQueue = 1024
	}
	if cfg.MaxWriteBuffer <= 0 {
		cfg.MaxWriteBuffer = 4096
	}
	s := &Server{
		cfg:       cfg,
		log:       log,
		meta:      meta,
		engines:   engine.NewManager(cfg.DataDir, 5000),
		wl:        coordinator.NewWriteLock(),
		metrics:   telemetry.NewMetrics(),
		authCache: newAuthCache(30 * time.Second),
		conns:     make(map[int64]*worker.Conn),
	}
	workerCfg := worker.Config{
		MaxConns:          cfg.MaxConns,
		IoRatio:           cfg.IoRatio,
		BusyMinWait:       msToDuration(cfg.BusyMinWaitMS),
		AuthTimeout:       msToDuration(cfg.AuthMS),
		SleepTimeout:      msToDuration(cfg.SleepMS),
		SleepInTxTimeout:  msToDuration(cfg.SleepInTxMS),
		IdleCheckInterval: minPositive(msToDuration(cfg.AuthMS), msToDuration(cfg.SleepMS), msToDuration(cfg.SleepInTxMS)),
		PinCPU:            cfg.PinCPU,
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		name := fmt.Sprintf("worker-%d", i)
		wc := workerCfg
		wc.CPUIndex = i
		w := worker.New(name, wc, log)
		s.workers = append(s.workers, w)
		go w.Run()
	}
	return s
}

// ListenAndServe opens the listening socket and runs the accept loop
// until the listener is closed.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.log.Info().Str("addr", addr).Msg("accepting connections")

	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleAccept(nc)
	}
}

// Stop closes the listener and every worker's event loop.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	for _, w := range s.workers {
		w.Stop()
	}
	s.engines.Close()
	s.meta.Close()
}

// pickWorker hashes the connection's identity across the fixed worker
// pool (spec §4.6 "round-robins ... dispatches to Workers via offer"),
// using xxhash the way the teacher hashes its replication dedup keys,
// so a given (host, user) pair lands on the same worker across
// reconnects rather than depending on accept-order interleaving.
func (s *Server) pickWorker(host, user string) *worker.Worker {
	h := xxhash.Sum64String(host + "\x00" + user)
	idx := h % uint64(len(s.workers))
	return s.workers[idx]
}

func (s *Server) handleAccept(nc net.Conn) {
	s.metrics.ConnectionsAccepted.Inc()
	host, _, _ := net.SplitHostPort(nc.RemoteAddr().String())

	allowed, err := s.meta.HostAllowed(host)
	if err != nil || !allowed {
		s.log.Debug().Str("host", host).Msg("rejecting connection: host not allow-listed")
		nc.Close()
		return
	}

	seed, err := newChallengeSeed()
	if err != nil {
		nc.Close()
		return
	}
	id := s.connSeq.Add(1)
	init := &wire.HandshakeInit{
		ProtocolVersion: protocolVersion,
		ServerVersion:   serverVersion,
		SessionID:       uint32(id),
		ChallengeSeed:   seed,
	}
	if _, err := nc.Write(init.Encode()); err != nil {
		nc.Close()
		return
	}

	var d wire.Decoder
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := nc.Read(tmp)
		if err != nil {
			nc.Close()
			return
		}
		buf = append(buf, tmp[:n]...)
		frame, consumed, ok, ferr := d.Next(buf)
		if ferr != nil {
			nc.Close()
			return
		}
		if !ok {
			continue
		}
		buf = buf[consumed:]
		reply, err := wire.DecodeLoginReply(frame.Payload)
		if err != nil {
			nc.Close()
			return
		}
		s.completeLogin(nc, id, host, reply, seed, buf)
		return
	}
}

func (s *Server) completeLogin(nc net.Conn, id int64, host string, reply *wire.LoginReply, seed [wire.ChallengeSeedLen]byte, leftover []byte) {
	rec, err := s.authCache.lookup(host, reply.User, "sqlite-server", func() (*metadb.UserRecord, error) {
		return s.meta.LookupUser(host, reply.User, "sqlite-server")
	})
	if err != nil {
		nc.Close()
		return
	}
	if !verifySignature(rec.Password, seed, reply.Signature) {
		nc.Close()
		return
	}

	wl := s.wl
	p := processor.New(id, s.cfg.InitReadBuffer, s.cfg.MaxReadBuffer, wl, s.log)
	p.MaxWriteTimes, p.MaxWriteQueue, p.MaxWriteBuffer = s.cfg.MaxWriteTimes, s.cfg.MaxWriteQueue, s.cfg.MaxWriteBuffer
	p.User, p.Host, p.Database, p.Protocol = reply.User, host, reply.Database, "sqlite-server"
	p.Super = rec.Super
	p.CheckPrivilege = s.meta.HasPrivilege
	p.Sess = &engine.SessionContext{User: reply.User, Host: host, Database: reply.Database, Version: serverVersion}

	db, err := s.engines.Create(reply.Database, "", p.Sess)
	if err != nil {
		nc.Close()
		return
	}
	p.Conn = db.WriteDB

	w := s.pickWorker(host, reply.User)
	conn := &worker.Conn{
		Proc:   p,
		Send:   func(b []byte) error { _, err := nc.Write(b); return err },
		Cancel: func() { nc.Close() },
		OnData: s.onData,
	}
	conn.OnClose = func(*worker.Conn) {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		s.metrics.ConnectionsActive.Dec()
	}
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	s.metrics.ConnectionsActive.Inc()

	worker.StartReader(w, conn, nc)
	if len(leftover) > 0 {
		w.PushEvent(conn, leftover, nil)
	}
	if !w.Offer(conn) {
		nc.Close()
	}
}

// Snapshot implements admin.Snapshotter by copying every worker's
// active-connection state under no additional locking beyond what each
// Processor field read already allows from outside its owning
// goroutine, acceptable here because Snapshot is advisory/diagnostic,
// not used to drive execution (spec §5 "External reads ... return
// copies of processor-state snapshots").
func (s *Server) Snapshot() []admin.ProcessSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]admin.ProcessSnapshot, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, admin.ProcessSnapshot{
			ID:       c.Proc.ID,
			User:     c.Proc.User,
			Host:     c.Proc.Host,
			Database: c.Proc.Database,
			State:    c.Proc.State.String(),
			Since:    c.Proc.SinceAt,
		})
	}
	return out
}

func newChallengeSeed() ([wire.ChallengeSeedLen]byte, error) {
	var seed [wire.ChallengeSeedLen]byte
	_, err := rand.Read(seed[:])
	return seed, err
}
