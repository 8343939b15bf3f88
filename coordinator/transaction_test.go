package coordinator

import (
	"testing"

	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/stretchr/testify/require"
)

func TestRewriteBegin_DeferredRewrittenToImmediate(t *testing.T) {
	mode := sqlparser.TransactionMode{Behavior: sqlparser.BehaviorDeferred}
	require.Equal(t, "BEGIN IMMEDIATE", RewriteBegin(mode))
}

func TestRewriteBegin_ExplicitReadOnlyStaysDeferred(t *testing.T) {
	ro := true
	mode := sqlparser.TransactionMode{Behavior: sqlparser.BehaviorDeferred, ReadOnly: &ro}
	require.Equal(t, "BEGIN", RewriteBegin(mode))
}

func TestRewriteBegin_ExplicitBehaviorPassesThrough(t *testing.T) {
	mode := sqlparser.TransactionMode{Behavior: sqlparser.BehaviorExclusive}
	require.Equal(t, "BEGIN EXCLUSIVE", RewriteBegin(mode))
}

func TestSavepointStack_ReleaseEmptiesStack(t *testing.T) {
	tx := NewExplicitTransaction(sqlparser.DefaultTransactionMode(), "begin")
	tx.PushSavepoint("a")
	tx.PushSavepoint("b")
	emptied := tx.ReleaseSavepoint("a")
	require.True(t, emptied)
	require.Empty(t, tx.Savepoints)
}

func TestSavepointStack_RollbackToKeepsTarget(t *testing.T) {
	tx := NewExplicitTransaction(sqlparser.DefaultTransactionMode(), "begin")
	tx.PushSavepoint("a")
	tx.PushSavepoint("b")
	tx.PushSavepoint("c")
	tx.RollbackToSavepoint("a")
	require.Equal(t, []string{"a"}, tx.Savepoints)
}

func TestImplicitTransaction_IsImmediateAndMarkedImplicit(t *testing.T) {
	tx := NewImplicitTransaction("insert into t(a) values(1)")
	require.True(t, tx.Implicit)
	require.Equal(t, sqlparser.BehaviorImmediate, tx.Mode.Behavior)
}
