package sqlparser

import (
	"strconv"
	"strings"

	"github.com/little-pan/sqlite-server/srverr"
)

// tryKeyword is a thin alias kept for readability at call sites.
func tryKeyword(sc *scanner, kw string) (bool, error) { return sc.consumeKeyword(kw) }

// requireEnd reports a parse error if the bounded statement body has
// unconsumed trailing input, used by the fully-structured recognizers
// (transaction control, PRAGMA, meta-DDL, GRANT/REVOKE, SHOW, KILL) where
// leftover text after a successful parse means fused or malformed keywords
// rather than an opaque tail to pass through.
func requireEnd(sc *scanner) error {
	if sc.pos != sc.limit {
		return srverr.NewParseError(sc.pos, "unexpected trailing input")
	}
	return nil
}

func expectKeyword(sc *scanner, kw string) (bool, error) {
	ok, err := sc.consumeKeyword(kw)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, srverr.NewParseError(sc.pos, "expected keyword %s", kw)
	}
	return true, nil
}

// sleepCall is one top-level SLEEP(...) occurrence found in a SELECT body.
type sleepCall struct {
	start, end int
	arg        string
}

// findSleepCalls scans [start,limit) for top-level SLEEP(...) occurrences,
// skipping over string/quoted-identifier literals and comments the same way
// findTopLevelKeywordSeq does, so a SLEEP spelled out inside a comment or a
// string literal never counts as a call (original_source's SQLParserTest:
// "select 'sleep(0)', 1, SLEEP(1)" and "select 1, sleep(1) -- sleep(2);" are
// both single-sleep statements, the other occurrences are inert text).
func findSleepCalls(src string, start, limit int) ([]sleepCall, error) {
	var calls []sleepCall
	p := start
	for p < limit {
		b := src[p]
		switch {
		case b == '\'' || b == '"':
			tmp := boundedScanner(src, p, limit)
			if err := tmp.skipString(); err != nil {
				return nil, err
			}
			p = tmp.pos
		case b == '-' && p+1 < limit && src[p+1] == '-':
			p += 2
			for p < limit && src[p] != '\n' {
				p++
			}
		case b == '/' && p+1 < limit && src[p+1] == '*':
			tmp := boundedScanner(src, p, limit)
			if err := tmp.skipBlockComment(); err != nil {
				return nil, err
			}
			p = tmp.pos
		default:
			tmp := boundedScanner(src, p, limit)
			if tmp.peekKeyword("SLEEP") {
				callStart := p
				tmp.pos += len("SLEEP")
				if err := tmp.skipSpaceAndComments(); err != nil {
					return nil, err
				}
				if tmp.peekByte() == '(' {
					tmp.pos++
					if err := tmp.skipSpaceAndComments(); err != nil {
						return nil, err
					}
					var arg string
					if tmp.peekByte() != ')' {
						text, _, err := tmp.readSignedNumber()
						if err != nil {
							return nil, err
						}
						arg = text
					}
					if tmp.peekByte() != ')' {
						return nil, srverr.NewParseError(tmp.pos, "malformed sleep() call")
					}
					tmp.pos++
					calls = append(calls, sleepCall{start: callStart, end: tmp.pos, arg: arg})
					p = tmp.pos
					continue
				}
			}
			p++
		}
	}
	return calls, nil
}

// parseSleepArg converts a sleep() call's numeric argument text (decimal,
// optionally signed, or 0x-hex) to whole seconds, defaulting to 0 for an
// absent or unparseable argument rather than failing the whole statement:
// the sleep duration is advisory scheduling behavior, not something worth
// rejecting a structurally valid call over.
func parseSleepArg(text string) int {
	if text == "" {
		return 0
	}
	if len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		n, err := strconv.ParseInt(text[2:], 16, 64)
		if err != nil {
			return 0
		}
		return int(n)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func recognizeSelect(sc *scanner) (*Statement, error) {
	stmtStart := sc.pos
	if _, err := expectKeyword(sc, "SELECT"); err != nil {
		return nil, err
	}

	forStart, _, err := findTopLevelKeywordSeq(sc.src, sc.pos, sc.limit, "FOR", "UPDATE")
	if err != nil {
		return nil, err
	}

	stmt := &Statement{Command: CmdSelect}
	execEnd := sc.limit
	if forStart >= 0 {
		stmt.IsForUpdate = true
		execEnd = forStart
	}
	stmt.ExecutableSQL = strings.TrimSpace(sc.src[stmtStart:execEnd])

	calls, err := findSleepCalls(sc.src, sc.pos, execEnd)
	if err != nil {
		return nil, err
	}
	if len(calls) > 1 {
		return nil, srverr.NewParseError(calls[1].start, "only a single sleep() call is supported per statement")
	}
	if len(calls) == 1 {
		call := calls[0]
		tail := boundedScanner(sc.src, call.end, execEnd)
		if err := tail.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if !tail.eof() {
			return nil, srverr.NewParseError(tail.pos, "sleep() must be the last expression in a SELECT statement")
		}
		stmt.SleepSeconds = parseSleepArg(call.arg)
	}

	return stmt, nil
}

func recognizeInsert(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "INSERT"); err != nil {
		return nil, err
	}

	selStart, _, err := findTopLevelKeywordSeq(sc.src, sc.pos, sc.limit, "SELECT")
	if err != nil {
		return nil, err
	}

	retStart, retEnd, err := findTopLevelKeywordSeq(sc.src, sc.pos, sc.limit, "RETURNING")
	if err != nil {
		return nil, err
	}

	fields := &InsertFields{HasSelect: selStart >= 0}
	if retStart >= 0 {
		fields.HasReturning = true
		fields.ReturningText = sc.src[retEnd:sc.limit]
	}
	return &Statement{Command: CmdInsert, Insert: fields}, nil
}

func recognizeTruncate(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "TRUNCATE"); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "TABLE"); err != nil {
		return nil, err
	}

	first, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	schema, table := "", first
	if sc.peekByte() == '.' {
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		schema = first
		if table, err = sc.readIdentifier(); err != nil {
			return nil, err
		}
	}

	exec := "delete from " + qualifiedName(schema, table)
	return &Statement{
		Command:       CmdDelete,
		Truncate:      &TruncateFields{Schema: schema, Table: table},
		ExecutableSQL: exec,
	}, nil
}

func qualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

func recognizeBegin(sc *scanner) (*Statement, error) {
	if ok, err := tryKeyword(sc, "BEGIN"); err != nil {
		return nil, err
	} else if !ok {
		if _, err := expectKeyword(sc, "START"); err != nil {
			return nil, err
		}
	}

	behavior := BehaviorDeferred
	if ok, err := tryKeyword(sc, "DEFERRED"); err != nil {
		return nil, err
	} else if ok {
		behavior = BehaviorDeferred
	} else if ok, err := tryKeyword(sc, "IMMEDIATE"); err != nil {
		return nil, err
	} else if ok {
		behavior = BehaviorImmediate
	} else if ok, err := tryKeyword(sc, "EXCLUSIVE"); err != nil {
		return nil, err
	} else if ok {
		behavior = BehaviorExclusive
	}

	if ok, err := tryKeyword(sc, "TRANSACTION"); err != nil {
		return nil, err
	} else if !ok {
		if _, err := tryKeyword(sc, "WORK"); err != nil {
			return nil, err
		}
	}

	readOnly, isolation, err := parseTxModeList(sc)
	if err != nil {
		return nil, err
	}
	mode := TransactionMode{ReadOnly: readOnly, Isolation: IsolationSerializable, Behavior: behavior}
	if isolation != "" {
		mode.Isolation = isolation
	}

	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdBegin, Transaction: &TransactionFields{Mode: mode}}, nil
}

func recognizeSimpleTxEnd(sc *scanner, cmd Command) (*Statement, error) {
	if _, err := expectKeyword(sc, string(cmd)); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "TRANSACTION"); err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: cmd, Transaction: &TransactionFields{}}, nil
}

func recognizeRollback(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "ROLLBACK"); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "TRANSACTION"); err != nil {
		return nil, err
	}

	fields := &TransactionFields{}
	if ok, err := tryKeyword(sc, "TO"); err != nil {
		return nil, err
	} else if ok {
		if _, err := tryKeyword(sc, "SAVEPOINT"); err != nil {
			return nil, err
		}
		name, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.Savepoint = name
		fields.HasTarget = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdRollback, Transaction: fields}, nil
}

func recognizeSavepoint(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "SAVEPOINT"); err != nil {
		return nil, err
	}
	name, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdSavepoint, Transaction: &TransactionFields{Savepoint: name, HasTarget: true}}, nil
}

func recognizeRelease(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "RELEASE"); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "SAVEPOINT"); err != nil {
		return nil, err
	}
	name, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdRelease, Transaction: &TransactionFields{Savepoint: name, HasTarget: true}}, nil
}

func recognizeSet(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "SET"); err != nil {
		return nil, err
	}

	sessionScope := false
	if ok, err := tryKeyword(sc, "SESSION"); err != nil {
		return nil, err
	} else if ok {
		if _, err := expectKeyword(sc, "CHARACTERISTICS"); err != nil {
			return nil, err
		}
		if _, err := expectKeyword(sc, "AS"); err != nil {
			return nil, err
		}
		sessionScope = true
	}
	if _, err := expectKeyword(sc, "TRANSACTION"); err != nil {
		return nil, err
	}

	readOnly, isolation, err := parseTxModeList(sc)
	if err != nil {
		return nil, err
	}
	mode := TransactionMode{ReadOnly: readOnly, Isolation: IsolationSerializable}
	if isolation != "" {
		mode.Isolation = isolation
	}

	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{
		Command:        CmdSetTransaction,
		SetTransaction: &SetTransactionFields{Mode: mode, SessionScope: sessionScope},
	}, nil
}

// parseTxModeList parses a comma-separated tx-mode-list: READ ONLY |
// READ WRITE | ISOLATION LEVEL <level> | REPEATABLE READ | SERIALIZABLE.
func parseTxModeList(sc *scanner) (*bool, IsolationLevel, error) {
	var readOnly *bool
	isolation := IsolationLevel("")

	for {
		matched := false

		if ok, err := tryKeyword(sc, "READ"); err != nil {
			return nil, "", err
		} else if ok {
			matched = true
			if ok2, err := tryKeyword(sc, "ONLY"); err != nil {
				return nil, "", err
			} else if ok2 {
				t := true
				readOnly = &t
			} else if ok2, err := tryKeyword(sc, "WRITE"); err != nil {
				return nil, "", err
			} else if ok2 {
				f := false
				readOnly = &f
			} else if ok2, err := tryKeyword(sc, "COMMITTED"); err != nil {
				return nil, "", err
			} else if ok2 {
				isolation = IsolationReadCommitted
			} else if ok2, err := tryKeyword(sc, "UNCOMMITTED"); err != nil {
				return nil, "", err
			} else if ok2 {
				isolation = IsolationReadUncommitted
			} else {
				return nil, "", srverr.NewParseError(sc.pos, "expected ONLY, WRITE, COMMITTED or UNCOMMITTED after READ")
			}
		} else if ok, err := tryKeyword(sc, "ISOLATION"); err != nil {
			return nil, "", err
		} else if ok {
			matched = true
			if _, err := expectKeyword(sc, "LEVEL"); err != nil {
				return nil, "", err
			}
			lvl, err := parseIsolationLevel(sc)
			if err != nil {
				return nil, "", err
			}
			isolation = lvl
		} else if ok, err := tryKeyword(sc, "REPEATABLE"); err != nil {
			return nil, "", err
		} else if ok {
			matched = true
			if _, err := expectKeyword(sc, "READ"); err != nil {
				return nil, "", err
			}
			isolation = IsolationRepeatableRead
		} else if ok, err := tryKeyword(sc, "SERIALIZABLE"); err != nil {
			return nil, "", err
		} else if ok {
			matched = true
			isolation = IsolationSerializable
		}

		if !matched {
			break
		}
		if sc.peekByte() == ',' {
			sc.pos++
			if err := sc.skipSpaceAndComments(); err != nil {
				return nil, "", err
			}
			continue
		}
		break
	}
	return readOnly, isolation, nil
}

func parseIsolationLevel(sc *scanner) (IsolationLevel, error) {
	if ok, err := tryKeyword(sc, "READ"); err != nil {
		return "", err
	} else if ok {
		if ok2, err := tryKeyword(sc, "UNCOMMITTED"); err != nil {
			return "", err
		} else if ok2 {
			return IsolationReadUncommitted, nil
		}
		if ok2, err := tryKeyword(sc, "COMMITTED"); err != nil {
			return "", err
		} else if ok2 {
			return IsolationReadCommitted, nil
		}
		return "", srverr.NewParseError(sc.pos, "expected UNCOMMITTED or COMMITTED after READ")
	}
	if ok, err := tryKeyword(sc, "REPEATABLE"); err != nil {
		return "", err
	} else if ok {
		if _, err := expectKeyword(sc, "READ"); err != nil {
			return "", err
		}
		return IsolationRepeatableRead, nil
	}
	if ok, err := tryKeyword(sc, "SERIALIZABLE"); err != nil {
		return "", err
	} else if ok {
		return IsolationSerializable, nil
	}
	return "", srverr.NewParseError(sc.pos, "expected isolation level")
}

func recognizeAttach(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "ATTACH"); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "DATABASE"); err != nil {
		return nil, err
	}
	path, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := expectKeyword(sc, "AS"); err != nil {
		return nil, err
	}
	schema, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdAttach, Attach: &AttachFields{Path: path, Schema: schema}}, nil
}

func recognizeDetach(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "DETACH"); err != nil {
		return nil, err
	}
	if _, err := tryKeyword(sc, "DATABASE"); err != nil {
		return nil, err
	}
	schema, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdDetach, Attach: &AttachFields{Schema: schema}}, nil
}

func recognizePragma(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "PRAGMA"); err != nil {
		return nil, err
	}
	first, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	schema, name := "", first
	if sc.peekByte() == '.' {
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		schema = first
		if name, err = sc.readIdentifier(); err != nil {
			return nil, err
		}
	}

	fields := &PragmaFields{Schema: schema, Name: name}

	closeParen := false
	if sc.peekByte() == '=' {
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return nil, err
		}
	} else if sc.peekByte() == '(' {
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		closeParen = true
	} else {
		if err := requireEnd(sc); err != nil {
			return nil, err
		}
		return &Statement{Command: CmdPragma, Pragma: fields}, nil
	}

	text, kind, err := parsePragmaValue(sc)
	if err != nil {
		return nil, err
	}
	fields.HasValue = true
	fields.ValueKind = kind
	fields.ValueText = text

	if closeParen {
		if sc.peekByte() != ')' {
			return nil, srverr.NewParseError(sc.pos, "expected ')' after PRAGMA value")
		}
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return nil, err
		}
	}

	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdPragma, Pragma: fields}, nil
}

func parsePragmaValue(sc *scanner) (string, PragmaValueKind, error) {
	b := sc.peekByte()
	if b == '\'' {
		start := sc.pos
		if err := sc.skipString(); err != nil {
			return "", 0, err
		}
		text := sc.src[start:sc.pos]
		if err := sc.skipSpaceAndComments(); err != nil {
			return "", 0, err
		}
		return text, PragmaValueString, nil
	}
	if isDigit(b) || b == '+' || b == '-' || b == '.' {
		// readSignedNumber doesn't handle a leading '.', so special-case it.
		if b == '.' || ((b == '+' || b == '-') && sc.peekByteAt(1) == '.') {
			start := sc.pos
			if b == '+' || b == '-' {
				sc.pos++
			}
			sc.pos++ // the '.'
			for !sc.eof() && isDigit(sc.peekByte()) {
				sc.pos++
			}
			if !sc.eof() && sc.peekByte() == '.' {
				return "", 0, srverr.NewParseError(sc.pos, "malformed decimal literal")
			}
			text := sc.src[start:sc.pos]
			if err := sc.skipSpaceAndComments(); err != nil {
				return "", 0, err
			}
			return text, PragmaValueDecimal, nil
		}
		return sc.readSignedNumber()
	}
	return "", 0, srverr.NewParseError(sc.pos, "expected a PRAGMA value")
}

func recognizeCreate(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "CREATE"); err != nil {
		return nil, err
	}
	if ok, err := tryKeyword(sc, "DATABASE"); err != nil {
		return nil, err
	} else if ok {
		return recognizeDatabaseBody(sc, false)
	}
	if ok, err := tryKeyword(sc, "SCHEMA"); err != nil {
		return nil, err
	} else if ok {
		return recognizeDatabaseBody(sc, false)
	}
	if ok, err := tryKeyword(sc, "USER"); err != nil {
		return nil, err
	} else if ok {
		return recognizeUserBody(sc, true)
	}
	return &Statement{Command: "CREATE"}, nil
}

func recognizeDrop(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "DROP"); err != nil {
		return nil, err
	}
	if ok, err := tryKeyword(sc, "DATABASE"); err != nil {
		return nil, err
	} else if ok {
		return recognizeDatabaseBody(sc, true)
	}
	if ok, err := tryKeyword(sc, "SCHEMA"); err != nil {
		return nil, err
	} else if ok {
		return recognizeDatabaseBody(sc, true)
	}
	if ok, err := tryKeyword(sc, "USER"); err != nil {
		return nil, err
	} else if ok {
		return recognizeDropUserBody(sc)
	}
	return &Statement{Command: "DROP"}, nil
}

func recognizeDatabaseBody(sc *scanner, drop bool) (*Statement, error) {
	ifExists := false
	if ok, err := tryKeyword(sc, "IF"); err != nil {
		return nil, err
	} else if ok {
		if drop {
			if _, err := expectKeyword(sc, "EXISTS"); err != nil {
				return nil, err
			}
		} else {
			if _, err := expectKeyword(sc, "NOT"); err != nil {
				return nil, err
			}
			if _, err := expectKeyword(sc, "EXISTS"); err != nil {
				return nil, err
			}
		}
		ifExists = true
	}

	name, err := sc.readIdentifier()
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(name)

	hasLocation := false
	location := ""
	if ok, err := tryKeyword(sc, "LOCATION"); err != nil {
		return nil, err
	} else if ok {
		hasLocation = true
		if location, err = sc.readIdentifier(); err != nil {
			return nil, err
		}
	} else if ok, err := tryKeyword(sc, "DIRECTORY"); err != nil {
		return nil, err
	} else if ok {
		hasLocation = true
		if location, err = sc.readIdentifier(); err != nil {
			return nil, err
		}
	}

	cmd := CmdCreateDatabase
	if drop {
		cmd = CmdDropDatabase
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{
		Command: cmd,
		Database: &DatabaseFields{
			Drop: drop, IfExists: ifExists, Name: name,
			Location: location, HasLocation: hasLocation,
		},
	}, nil
}

func recognizeUserBody(sc *scanner, isCreate bool) (*Statement, error) {
	ref, err := sc.readUserRef()
	if err != nil {
		return nil, err
	}
	fields := &UserFields{Ref: ref}
	if isCreate {
		fields.Protocol = "pg"
		fields.AuthMethod = AuthMD5
	}

	if _, err := tryKeyword(sc, "WITH"); err != nil {
		return nil, err
	}

	if err := parseUserClauses(sc, fields); err != nil {
		return nil, err
	}

	cmd := CmdAlterUser
	if isCreate {
		cmd = CmdCreateUser
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: cmd, User: fields}, nil
}

func recognizeAlterUser(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "ALTER"); err != nil {
		return nil, err
	}
	if ok, err := tryKeyword(sc, "USER"); err != nil {
		return nil, err
	} else if ok {
		return recognizeUserBody(sc, false)
	}
	return &Statement{Command: "ALTER"}, nil
}

// parseUserClauses parses the repeated (SUPERUSER|NOSUPERUSER|IDENTIFIED
// BY 'pw'|IDENTIFIED WITH protocol [authmethod])* clause list shared by
// CREATE USER and ALTER USER, last-wins on repeats.
func parseUserClauses(sc *scanner, fields *UserFields) error {
	identifiedCount := 0

	for {
		matched := false

		if ok, err := tryKeyword(sc, "SUPERUSER"); err != nil {
			return err
		} else if ok {
			matched = true
			fields.SetSuper = true
			fields.Super = true
		} else if ok, err := tryKeyword(sc, "NOSUPERUSER"); err != nil {
			return err
		} else if ok {
			matched = true
			fields.SetSuper = true
			fields.Super = false
		} else if ok, err := tryKeyword(sc, "IDENTIFIED"); err != nil {
			return err
		} else if ok {
			matched = true
			identifiedCount++
			if identifiedCount > 1 {
				return srverr.NewParseError(sc.pos, "multiple auth methods specified")
			}
			if ok2, err := tryKeyword(sc, "BY"); err != nil {
				return err
			} else if ok2 {
				pw, err := sc.readIdentifier()
				if err != nil {
					return err
				}
				fields.SetPassword = true
				fields.Password = pw
			} else if ok2, err := tryKeyword(sc, "WITH"); err != nil {
				return err
			} else if ok2 {
				proto, err := sc.readIdentifier()
				if err != nil {
					return err
				}
				fields.Protocol = proto
				saved := sc.pos
				if isIdentStart(sc.peekByte()) {
					word, err := sc.readIdentifier()
					if err != nil {
						return err
					}
					switch strings.ToLower(word) {
					case "md5":
						fields.AuthMethod = AuthMD5
					case "password":
						fields.AuthMethod = AuthPassword
					case "trust":
						fields.AuthMethod = AuthTrust
					default:
						sc.pos = saved
					}
				}
			} else {
				return srverr.NewParseError(sc.pos, "expected BY or WITH after IDENTIFIED")
			}
		}

		if !matched {
			break
		}
	}
	return nil
}

func recognizeDropUserBody(sc *scanner) (*Statement, error) {
	var refs []UserRef
	for {
		ref, err := sc.readUserRef()
		if err != nil {
			return nil, err
		}
		if ok, err := tryKeyword(sc, "IDENTIFIED"); err != nil {
			return nil, err
		} else if ok {
			if _, err := expectKeyword(sc, "WITH"); err != nil {
				return nil, err
			}
			if _, err := sc.readIdentifier(); err != nil {
				return nil, err
			}
		}
		refs = append(refs, ref)
		if sc.peekByte() == ',' {
			sc.pos++
			if err := sc.skipSpaceAndComments(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	first := UserRef{}
	if len(refs) > 0 {
		first = refs[0]
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdDropUser, User: &UserFields{Ref: first, DropRefs: refs}}, nil
}

var allowedPrivileges = map[string]bool{
	"all": true, "select": true, "insert": true, "update": true, "delete": true,
	"attach": true, "vacuum": true, "create": true, "drop": true, "alter": true,
	"pragma": true,
}

func recognizeGrantRevoke(sc *scanner, revoke bool) (*Statement, error) {
	leading := "GRANT"
	if revoke {
		leading = "REVOKE"
	}
	if _, err := expectKeyword(sc, leading); err != nil {
		return nil, err
	}

	var privileges []string
	for {
		word, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		lower := strings.ToLower(word)
		if lower == "all" {
			if _, err := tryKeyword(sc, "PRIVILEGES"); err != nil {
				return nil, err
			}
		} else if !allowedPrivileges[lower] {
			return nil, srverr.NewParseError(sc.pos, "unknown privilege %q", word)
		}
		privileges = append(privileges, lower)

		if sc.peekByte() == ',' {
			sc.pos++
			if err := sc.skipSpaceAndComments(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	if _, err := expectKeyword(sc, "ON"); err != nil {
		return nil, err
	}
	if ok, err := tryKeyword(sc, "DATABASE"); err != nil {
		return nil, err
	} else if !ok {
		if _, err := tryKeyword(sc, "SCHEMA"); err != nil {
			return nil, err
		}
	}

	var databases []string
	for {
		db, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		databases = append(databases, strings.ToLower(db))
		if sc.peekByte() == ',' {
			sc.pos++
			if err := sc.skipSpaceAndComments(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	target := "TO"
	if revoke {
		target = "FROM"
	}
	if _, err := expectKeyword(sc, target); err != nil {
		return nil, err
	}

	var grantees []UserRef
	for {
		ref, err := sc.readUserRef()
		if err != nil {
			return nil, err
		}
		grantees = append(grantees, ref)
		if sc.peekByte() == ',' {
			sc.pos++
			if err := sc.skipSpaceAndComments(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	cmd := CmdGrant
	if revoke {
		cmd = CmdRevoke
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{
		Command: cmd,
		Grant:   &GrantFields{Revoke: revoke, Privileges: privileges, Databases: databases, Grantees: grantees},
	}, nil
}

func recognizeShow(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "SHOW"); err != nil {
		return nil, err
	}

	switch {
	case peekAny(sc, "COLUMNS", "FIELDS"):
		return recognizeShowColumns(sc)
	case peekAny(sc, "CREATE"):
		return recognizeShowCreate(sc)
	case peekAny(sc, "DATABASES"):
		return recognizeShowDatabases(sc)
	case peekAny(sc, "GRANTS"):
		return recognizeShowGrants(sc)
	case peekAny(sc, "INDEXES"):
		return recognizeShowIndexes(sc)
	case peekAny(sc, "PROCESSLIST"):
		return recognizeShowProcesslist(sc)
	case peekAny(sc, "STATUS"):
		if _, err := expectKeyword(sc, "STATUS"); err != nil {
			return nil, err
		}
		if err := requireEnd(sc); err != nil {
			return nil, err
		}
		return &Statement{Command: CmdShow, Show: &ShowFields{Kind: ShowStatus}}, nil
	case peekAny(sc, "TABLES"):
		return recognizeShowTables(sc)
	case peekAny(sc, "USERS"):
		return recognizeShowUsers(sc)
	default:
		return nil, srverr.NewParseError(sc.pos, "unrecognized SHOW form")
	}
}

func peekAny(sc *scanner, kws ...string) bool {
	for _, kw := range kws {
		if sc.peekKeyword(kw) {
			return true
		}
	}
	return false
}

func fromOrIn(sc *scanner) (bool, error) {
	if ok, err := tryKeyword(sc, "FROM"); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return tryKeyword(sc, "IN")
}

func readQualifiedTarget(sc *scanner) (schema, target string, err error) {
	first, err := sc.readIdentifier()
	if err != nil {
		return "", "", err
	}
	if sc.peekByte() == '.' {
		sc.pos++
		if err := sc.skipSpaceAndComments(); err != nil {
			return "", "", err
		}
		target, err = sc.readIdentifier()
		if err != nil {
			return "", "", err
		}
		return first, target, nil
	}
	return "", first, nil
}

func recognizeShowColumns(sc *scanner) (*Statement, error) {
	if ok, err := tryKeyword(sc, "COLUMNS"); err != nil {
		return nil, err
	} else if !ok {
		if _, err := expectKeyword(sc, "FIELDS"); err != nil {
			return nil, err
		}
	}
	if ok, err := fromOrIn(sc); err != nil {
		return nil, err
	} else if !ok {
		return nil, srverr.NewParseError(sc.pos, "expected FROM or IN")
	}
	schema, target, err := readQualifiedTarget(sc)
	if err != nil {
		return nil, err
	}
	if ok, err := fromOrIn(sc); err != nil {
		return nil, err
	} else if ok {
		s, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		schema = s
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: &ShowFields{Kind: ShowColumns, Schema: schema, Target: target}}, nil
}

func recognizeShowCreate(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "CREATE"); err != nil {
		return nil, err
	}
	kind := ShowCreateTable
	if ok, err := tryKeyword(sc, "INDEX"); err != nil {
		return nil, err
	} else if ok {
		kind = ShowCreateIndex
	} else if _, err := expectKeyword(sc, "TABLE"); err != nil {
		return nil, err
	}
	schema, target, err := readQualifiedTarget(sc)
	if err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: &ShowFields{Kind: kind, Schema: schema, Target: target}}, nil
}

func recognizeShowDatabases(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "DATABASES"); err != nil {
		return nil, err
	}
	all := false
	if ok, err := tryKeyword(sc, "ALL"); err != nil {
		return nil, err
	} else if ok {
		all = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: &ShowFields{Kind: ShowDatabases, AllDatabases: all}}, nil
}

func recognizeShowGrants(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "GRANTS"); err != nil {
		return nil, err
	}
	fields := &ShowFields{Kind: ShowGrants}
	if ok, err := tryKeyword(sc, "FOR"); err != nil {
		return nil, err
	} else if ok {
		fields.GrantHasUser = true
		if ok2, err := tryKeyword(sc, "CURRENT_USER"); err != nil {
			return nil, err
		} else if ok2 {
			fields.GrantCurrentUser = true
			if sc.peekByte() == '(' {
				sc.pos++
				if sc.peekByte() != ')' {
					return nil, srverr.NewParseError(sc.pos, "expected ')'")
				}
				sc.pos++
				if err := sc.skipSpaceAndComments(); err != nil {
					return nil, err
				}
			}
		} else {
			saved := sc.pos
			ref, err := sc.readUserRef()
			if err != nil {
				// Bare quoted user without '@host': fall back to a plain
				// identifier and canonicalize the host to "%" verbatim
				// (spec §9 Open Question (b)).
				sc.pos = saved
				user, ierr := sc.readIdentifier()
				if ierr != nil {
					return nil, err
				}
				ref = UserRef{User: user, Host: "%"}
			}
			fields.GrantUser = ref
		}
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: fields}, nil
}

func recognizeShowIndexes(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "INDEXES"); err != nil {
		return nil, err
	}
	fields := &ShowFields{Kind: ShowIndexes}
	if ok, err := tryKeyword(sc, "EXTENDED"); err != nil {
		return nil, err
	} else if ok {
		fields.Extended = true
	}
	if ok, err := tryKeyword(sc, "COLUMNS"); err != nil {
		return nil, err
	} else if ok {
		fields.ColumnsOnly = true
	}
	if ok, err := fromOrIn(sc); err != nil {
		return nil, err
	} else if !ok {
		return nil, srverr.NewParseError(sc.pos, "expected FROM or IN")
	}
	schema, target, err := readQualifiedTarget(sc)
	if err != nil {
		return nil, err
	}
	fields.Schema, fields.Target = schema, target
	if ok, err := fromOrIn(sc); err != nil {
		return nil, err
	} else if ok {
		s, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.Schema = s
	}
	if ok, err := tryKeyword(sc, "WHERE"); err != nil {
		return nil, err
	} else if ok {
		pattern, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.WherePattern = pattern
		fields.HasWhere = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: fields}, nil
}

func recognizeShowProcesslist(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "PROCESSLIST"); err != nil {
		return nil, err
	}
	full := false
	if ok, err := tryKeyword(sc, "FULL"); err != nil {
		return nil, err
	} else if ok {
		full = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: &ShowFields{Kind: ShowProcesslist, Full: full}}, nil
}

func recognizeShowTables(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "TABLES"); err != nil {
		return nil, err
	}
	fields := &ShowFields{Kind: ShowTables}
	if ok, err := tryKeyword(sc, "FROM"); err != nil {
		return nil, err
	} else if ok {
		schema, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.Schema = schema
	}
	if ok, err := tryKeyword(sc, "LIKE"); err != nil {
		return nil, err
	} else if ok {
		pattern, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.LikePattern = pattern
		fields.HasLike = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: fields}, nil
}

func recognizeShowUsers(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "USERS"); err != nil {
		return nil, err
	}
	fields := &ShowFields{Kind: ShowUsers}
	if ok, err := tryKeyword(sc, "WHERE"); err != nil {
		return nil, err
	} else if ok {
		pattern, err := sc.readIdentifier()
		if err != nil {
			return nil, err
		}
		fields.WherePattern = pattern
		fields.HasWhere = true
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdShow, Show: fields}, nil
}

func recognizeKill(sc *scanner) (*Statement, error) {
	if _, err := expectKeyword(sc, "KILL"); err != nil {
		return nil, err
	}
	query := false
	if ok, err := tryKeyword(sc, "QUERY"); err != nil {
		return nil, err
	} else if ok {
		query = true
	} else {
		if _, err := tryKeyword(sc, "CONNECTION"); err != nil {
			return nil, err
		}
	}

	start := sc.pos
	for !sc.eof() && isDigit(sc.peekByte()) {
		sc.pos++
	}
	if sc.pos == start {
		return nil, srverr.NewParseError(sc.pos, "expected connection id")
	}
	id, err := strconv.ParseInt(sc.src[start:sc.pos], 10, 64)
	if err != nil {
		return nil, srverr.NewParseError(start, "malformed connection id")
	}
	if err := sc.skipSpaceAndComments(); err != nil {
		return nil, err
	}
	if err := requireEnd(sc); err != nil {
		return nil, err
	}
	return &Statement{Command: CmdKill, Kill: &KillFields{Query: query, ID: id}}, nil
}
