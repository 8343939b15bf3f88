package processor

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/little-pan/sqlite-server/coordinator"
	"github.com/little-pan/sqlite-server/engine"
	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/little-pan/sqlite-server/srverr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	sess := &engine.SessionContext{User: "bob", Host: "%", Database: "test"}
	db, err := engine.Open(path, 2000, sess, false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("create table t(id integer primary key, v text)")
	require.NoError(t, err)
	return db
}

func testProcessor(t *testing.T, id int64, wl *coordinator.WriteLock) *Processor {
	t.Helper()
	p := New(id, 4096, 65536, wl, zerolog.Nop())
	p.Conn = testDB(t)
	p.Sess = &engine.SessionContext{User: "bob", Host: "%", Database: "test"}
	return p
}

func parseOne(t *testing.T, src string) *sqlparser.Statement {
	t.Helper()
	p := sqlparser.NewParser(src)
	require.True(t, p.HasNext())
	stmt, err := p.Next()
	require.NoError(t, err)
	return stmt
}

func TestExecuteStatement_ImplicitTransactionCommits(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)

	stmt := parseOne(t, "insert into t(v) values ('hello')")
	stmt.IsPrepared = true
	var rows []engine.Row
	res, err := p.ExecuteStatement(context.Background(), stmt, time.Second, func(r engine.Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsAffected)
	require.Nil(t, p.Tx)
	require.Equal(t, StateSleep, p.State)
	require.EqualValues(t, 0, wl.HeldBy())
}

func TestExecuteStatement_PlainWriteSkipsImplicitTransaction(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)

	stmt := parseOne(t, "insert into t(v) values ('hello')")
	require.False(t, stmt.IsPrepared)
	res, err := p.ExecuteStatement(context.Background(), stmt, time.Second, func(engine.Row) error { return nil })
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsAffected)
	require.Nil(t, p.Tx)
	require.EqualValues(t, 0, wl.HeldBy())
}

func TestShouldBeginImplicitTx(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)

	write := parseOne(t, "insert into t(v) values ('x')")
	require.False(t, p.shouldBeginImplicitTx(write))

	write.IsPrepared = true
	require.True(t, p.shouldBeginImplicitTx(write))

	query := parseOne(t, "select * from t")
	query.IsPrepared = true
	require.False(t, p.shouldBeginImplicitTx(query))

	p.Tx = coordinator.NewImplicitTransaction("x")
	require.False(t, p.shouldBeginImplicitTx(write))
}

func TestCheckPermission_DeniesAndAllows(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)
	p.Host, p.User, p.Database = "%", "bob", "test"

	stmt := parseOne(t, "select 1")

	p.CheckPrivilege = func(host, user, db string) (bool, error) { return false, nil }
	_, err := p.ExecuteStatement(context.Background(), stmt, time.Second, func(engine.Row) error { return nil })
	require.Error(t, err)
	require.True(t, srverr.Is(err, srverr.KindPermissionDenied))

	p.CheckPrivilege = func(host, user, db string) (bool, error) { return true, nil }
	_, err = p.ExecuteStatement(context.Background(), stmt, time.Second, func(engine.Row) error { return nil })
	require.NoError(t, err)

	p.CheckPrivilege = func(host, user, db string) (bool, error) { return false, nil }
	p.Super = true
	_, err = p.ExecuteStatement(context.Background(), stmt, time.Second, func(engine.Row) error { return nil })
	require.NoError(t, err)
}

func TestExecuteStatement_QueryDoesNotTakeWriteLock(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)

	_, err := p.Conn.Exec("insert into t(v) values ('x')")
	require.NoError(t, err)

	stmt := parseOne(t, "select id, v from t")
	var rows []engine.Row
	res, err := p.ExecuteStatement(context.Background(), stmt, time.Second, func(r engine.Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.True(t, res.IsQuery)
	require.Len(t, rows, 1)
	require.EqualValues(t, 0, wl.HeldBy())
}

func TestExecuteStatement_BusyWhenWriteLockHeldElsewhere(t *testing.T) {
	wl := coordinator.NewWriteLock()
	require.True(t, wl.TryLock(99))

	p := testProcessor(t, 1, wl)
	stmt := parseOne(t, "insert into t(v) values ('blocked')")
	_, err := p.ExecuteStatement(context.Background(), stmt, time.Second, func(engine.Row) error { return nil })
	require.Error(t, err)
	require.Equal(t, StateBusy, p.State)
	require.NotNil(t, p.Busy)
	require.True(t, p.Busy.OnWriteLock)
}

func TestCancel_MarksBusyContextCanceled(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)
	p.Busy = coordinator.NewSleepBusyContext(time.Hour)

	p.Cancel(false)
	require.True(t, p.Canceled)
	require.True(t, p.Busy.Canceled)
	require.NotEqual(t, StateStopped, p.State)

	p.Cancel(true)
	require.Equal(t, StateStopped, p.State)
}

func TestClose_ReleasesWriteLock(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 7, wl)
	require.True(t, wl.TryLock(7))

	p.Close()
	require.EqualValues(t, 0, wl.HeldBy())
	require.Equal(t, StateClosed, p.State)
}

func TestQueueWrite_MergesSmallTailBuffers(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)
	p.MaxWriteBuffer = 16

	p.QueueWrite([]byte("abc"))
	p.QueueWrite([]byte("def"))
	require.Len(t, p.WriteQueue, 1)
	require.Equal(t, "abcdef", string(p.WriteQueue[0]))

	p.QueueWrite([]byte("01234567890123456789"))
	require.Len(t, p.WriteQueue, 2)
}

func TestFlushWrites_RequeuesShortWrite(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)
	p.QueueWrite([]byte("hello"))

	drained, err := p.FlushWrites(func(buf []byte) (int, error) {
		return 2, nil
	})
	require.NoError(t, err)
	require.False(t, drained)
	require.Len(t, p.WriteQueue, 1)
	require.Equal(t, "llo", string(p.WriteQueue[0]))
}

func TestFlushWrites_DrainsFully(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)
	p.QueueWrite([]byte("hello"))

	var written []byte
	drained, err := p.FlushWrites(func(buf []byte) (int, error) {
		written = append(written, buf...)
		return len(buf), nil
	})
	require.NoError(t, err)
	require.True(t, drained)
	require.Empty(t, p.WriteQueue)
	require.Equal(t, "hello", string(written))
}

func TestAttachMeta_IdempotentAndDetaches(t *testing.T) {
	wl := coordinator.NewWriteLock()
	p := testProcessor(t, 1, wl)

	metaPath := filepath.Join(t.TempDir(), "meta.db")
	metaSess := &engine.SessionContext{User: "meta", Host: "local", Database: "meta"}
	metaDB, err := engine.Open(metaPath, 2000, metaSess, false)
	require.NoError(t, err)
	require.NoError(t, metaDB.Close())

	require.NoError(t, p.AttachMeta(context.Background(), metaPath))
	require.True(t, p.MetaAttached)
	require.NoError(t, p.AttachMeta(context.Background(), metaPath))

	p.detachMeta(context.Background())
	require.False(t, p.MetaAttached)
}
