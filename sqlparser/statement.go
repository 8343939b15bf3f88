package sqlparser

// Command is the uppercase canonical command tag of a parsed Statement.
type Command string

const (
	CmdEmpty    Command = ""
	CmdSelect   Command = "SELECT"
	CmdInsert   Command = "INSERT"
	CmdUpdate   Command = "UPDATE"
	CmdDelete   Command = "DELETE"
	CmdBegin    Command = "BEGIN"
	CmdCommit   Command = "COMMIT"
	CmdEnd      Command = "END"
	CmdRollback Command = "ROLLBACK"
	CmdSavepoint Command = "SAVEPOINT"
	CmdRelease  Command = "RELEASE"
	CmdSetTransaction Command = "SET TRANSACTION"
	CmdPragma   Command = "PRAGMA"
	CmdAttach   Command = "ATTACH"
	CmdDetach   Command = "DETACH"
	CmdCreateDatabase Command = "CREATE DATABASE"
	CmdDropDatabase   Command = "DROP DATABASE"
	CmdCreateUser Command = "CREATE USER"
	CmdAlterUser  Command = "ALTER USER"
	CmdDropUser   Command = "DROP USER"
	CmdGrant  Command = "GRANT"
	CmdRevoke Command = "REVOKE"
	CmdShow   Command = "SHOW"
	CmdKill   Command = "KILL"
	// CmdOther is the empty Command. The parser does not assign it: a
	// first keyword with no structured recognizer gets the uppercased
	// first word itself as Statement.Command.
	CmdOther Command = ""
)

var transactionCommands = map[Command]bool{
	CmdBegin: true, CmdCommit: true, CmdEnd: true,
	CmdRollback: true, CmdSavepoint: true, CmdRelease: true,
}

// IsolationLevel is the transaction isolation level.
type IsolationLevel string

const (
	IsolationUnspecified    IsolationLevel = ""
	IsolationReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	IsolationReadCommitted   IsolationLevel = "READ COMMITTED"
	IsolationRepeatableRead  IsolationLevel = "REPEATABLE READ"
	IsolationSerializable    IsolationLevel = "SERIALIZABLE"
)

// Behavior is the BEGIN locking behavior.
type Behavior string

const (
	BehaviorUnspecified Behavior = ""
	BehaviorDeferred    Behavior = "DEFERRED"
	BehaviorImmediate   Behavior = "IMMEDIATE"
	BehaviorExclusive   Behavior = "EXCLUSIVE"
)

// TransactionMode is the triple of spec §3: optional read-only flag,
// isolation level, and locking behavior.
type TransactionMode struct {
	ReadOnly  *bool // nil = unspecified, inherits session
	Isolation IsolationLevel
	Behavior  Behavior
}

// DefaultTransactionMode is DEFERRED/SERIALIZABLE/inherited read-only.
func DefaultTransactionMode() TransactionMode {
	return TransactionMode{Isolation: IsolationSerializable, Behavior: BehaviorDeferred}
}

// TransactionFields holds the extracted arguments for BEGIN, COMMIT, END,
// ROLLBACK, SAVEPOINT and RELEASE.
type TransactionFields struct {
	Mode       TransactionMode
	Savepoint  string // SAVEPOINT name, or ROLLBACK/RELEASE target; empty if none
	HasTarget  bool   // true when ROLLBACK TO / RELEASE names a savepoint
}

// InsertFields holds the structured arguments extracted from INSERT.
type InsertFields struct {
	HasSelect    bool   // true for INSERT ... SELECT ...
	HasReturning bool
	ReturningText string // verbatim text after RETURNING, including whitespace/comments
}

// TruncateFields holds schema/table for a TRUNCATE rewritten to DELETE.
type TruncateFields struct {
	Schema string
	Table  string
}

// SetTransactionFields holds the arguments of SET TRANSACTION / SET SESSION
// CHARACTERISTICS AS TRANSACTION.
type SetTransactionFields struct {
	Mode          TransactionMode
	SessionScope  bool // true for SET SESSION CHARACTERISTICS AS TRANSACTION
}

// AttachFields holds ATTACH/DETACH arguments.
type AttachFields struct {
	Path   string // only for ATTACH
	Schema string
}

// PragmaValueKind classifies the literal kind of a PRAGMA value.
type PragmaValueKind int

const (
	PragmaValueNone PragmaValueKind = iota
	PragmaValueInteger
	PragmaValueDecimal
	PragmaValueHex
	PragmaValueString
)

// PragmaFields holds PRAGMA arguments.
type PragmaFields struct {
	Schema    string
	Name      string
	HasValue  bool
	ValueKind PragmaValueKind
	ValueText string // raw text of the value, as written
}

// DatabaseFields holds CREATE/DROP DATABASE|SCHEMA arguments.
type DatabaseFields struct {
	Drop      bool
	IfExists  bool // IF EXISTS (drop) / IF NOT EXISTS (create), per Drop
	Name      string
	Location  string // empty if not given
	HasLocation bool
}

// AuthMethod is a user's configured authentication method.
type AuthMethod string

const (
	AuthMD5      AuthMethod = "md5"
	AuthPassword AuthMethod = "password"
	AuthTrust    AuthMethod = "trust"
)

// UserRef identifies a 'user'@'host' pair.
type UserRef struct {
	User string
	Host string
}

// UserFields holds CREATE/ALTER/DROP USER arguments.
type UserFields struct {
	Ref             UserRef
	SetSuper        bool // whether SUPERUSER/NOSUPERUSER was specified
	Super           bool
	SetPassword     bool
	Password        string
	Protocol        string // default "pg"
	AuthMethod      AuthMethod
	DropRefs        []UserRef // DROP USER supports a comma list
}

// GrantFields holds GRANT/REVOKE arguments.
type GrantFields struct {
	Revoke    bool
	Privileges []string // canonicalized lowercase, "all" if ALL [PRIVILEGES]
	Databases  []string
	Grantees   []UserRef
}

// ShowKind distinguishes the SHOW sub-forms of spec §4.1.
type ShowKind string

const (
	ShowColumns    ShowKind = "COLUMNS"
	ShowCreateIndex ShowKind = "CREATE INDEX"
	ShowCreateTable ShowKind = "CREATE TABLE"
	ShowDatabases  ShowKind = "DATABASES"
	ShowGrants     ShowKind = "GRANTS"
	ShowIndexes    ShowKind = "INDEXES"
	ShowProcesslist ShowKind = "PROCESSLIST"
	ShowStatus     ShowKind = "STATUS"
	ShowTables     ShowKind = "TABLES"
	ShowUsers      ShowKind = "USERS"
)

// ShowFields holds SHOW arguments, populated according to Kind.
type ShowFields struct {
	Kind ShowKind

	Schema string
	Target string // table/index name

	AllDatabases bool // DATABASES ALL
	Full         bool // PROCESSLIST FULL
	Extended     bool // INDEXES EXTENDED
	ColumnsOnly  bool // INDEXES COLUMNS

	GrantUser        UserRef
	GrantCurrentUser bool
	GrantHasUser     bool

	LikePattern  string
	HasLike      bool
	WherePattern string
	HasWhere     bool
}

// KillFields holds KILL arguments.
type KillFields struct {
	Query bool // true = KILL QUERY, false = KILL CONNECTION (default)
	ID    int64
}

// Statement is an immutable, parsed unit of SQL text (spec §3). At most one
// of the variant-specific pointer fields is non-nil, chosen by Command;
// commands without structured arguments leave all of them nil.
type Statement struct {
	Text          string // original verbatim text of the statement
	ExecutableSQL string // text to send to the engine (may differ from Text)
	Command       Command
	RawKeyword    string // uppercased first keyword; set only when no structured recognizer matched

	IsQuery      bool
	IsTransaction bool
	IsEmpty      bool
	IsComment    bool
	IsForUpdate  bool // SELECT ... FOR UPDATE
	SleepSeconds int   // > 0 when recognized trailing SLEEP(n) pattern; else 0

	// IsPrepared marks a re-executable (bind-and-execute) statement, set
	// by the dispatch layer from the wire command tag rather than by
	// parsing (spec §8 "Implicit transactions exist only when autoCommit
	// = true at start of statement and statement is prepared+writable").
	IsPrepared bool

	Transaction     *TransactionFields
	Insert          *InsertFields
	Truncate        *TruncateFields
	SetTransaction  *SetTransactionFields
	Attach          *AttachFields
	Pragma          *PragmaFields
	Database        *DatabaseFields
	User            *UserFields
	Grant           *GrantFields
	Show            *ShowFields
	Kill            *KillFields
}

// computePredicates fills IsQuery/IsTransaction per spec §8's invariant.
func (s *Statement) computePredicates() {
	switch s.Command {
	case CmdSelect, CmdAttach, CmdDetach, CmdShow:
		s.IsQuery = true
	case CmdPragma:
		s.IsQuery = s.Pragma == nil || !s.Pragma.HasValue
	}
	if transactionCommands[s.Command] {
		s.IsTransaction = true
	}
}
