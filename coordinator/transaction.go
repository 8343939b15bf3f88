package coordinator

import (
	"github.com/little-pan/sqlite-server/sqlparser"
)

// Transaction is the per-connection state of spec §3/§4.3: mode, whether
// it was opened implicitly by auto-commit wrapping, the statement that
// opened it, and the savepoint stack (ordered, top = innermost).
type Transaction struct {
	Mode       sqlparser.TransactionMode
	Implicit   bool
	Opener     string // original text of the statement that opened this transaction
	Savepoints []string
}

// NewExplicitTransaction starts a transaction opened by BEGIN.
func NewExplicitTransaction(mode sqlparser.TransactionMode, opener string) *Transaction {
	return &Transaction{Mode: mode, Opener: opener}
}

// NewImplicitTransaction starts the implicit BEGIN IMMEDIATE wrapping a
// single writable prepared statement in auto-commit (spec §4.3).
func NewImplicitTransaction(opener string) *Transaction {
	mode := sqlparser.TransactionMode{Isolation: sqlparser.IsolationSerializable, Behavior: sqlparser.BehaviorImmediate}
	return &Transaction{Mode: mode, Implicit: true, Opener: opener}
}

// PushSavepoint records a new savepoint on top of the stack.
func (t *Transaction) PushSavepoint(name string) {
	t.Savepoints = append(t.Savepoints, name)
}

// ReleaseSavepoint pops the stack down to and including name, per spec
// §4.3 ("RELEASE ... n pops to and including n"). It reports whether the
// stack is now empty, meaning auto-commit should be restored. An unknown
// name is left to the engine to reject (the stack here mirrors what the
// engine already tracks; we do not duplicate its validation).
func (t *Transaction) ReleaseSavepoint(name string) (emptied bool) {
	idx := t.indexOf(name)
	if idx < 0 {
		return len(t.Savepoints) == 0
	}
	t.Savepoints = t.Savepoints[:idx]
	return len(t.Savepoints) == 0
}

// RollbackToSavepoint pops the stack down to (but not including) name ,
// the savepoint itself remains open, matching SQLite's ROLLBACK TO
// semantics (spec §4.3).
func (t *Transaction) RollbackToSavepoint(name string) {
	idx := t.indexOf(name)
	if idx < 0 {
		return
	}
	t.Savepoints = t.Savepoints[:idx+1]
}

func (t *Transaction) indexOf(name string) int {
	for i, s := range t.Savepoints {
		if s == name {
			return i
		}
	}
	return -1
}

// RewriteBegin applies spec §4.3's "DEFERRED in auto-commit is rewritten
// to IMMEDIATE unless explicitly read-only" rule and returns the
// executable SQL to send to the engine.
func RewriteBegin(mode sqlparser.TransactionMode) string {
	behavior := mode.Behavior
	if behavior == sqlparser.BehaviorUnspecified {
		behavior = sqlparser.BehaviorDeferred
	}
	if behavior == sqlparser.BehaviorDeferred {
		readOnly := mode.ReadOnly != nil && *mode.ReadOnly
		if !readOnly {
			return "BEGIN IMMEDIATE"
		}
		return "BEGIN"
	}
	return "BEGIN " + string(behavior)
}
