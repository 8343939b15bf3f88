// Package sqlparser is an incremental, comment-aware statement splitter
// and dialect recognizer. It classifies SQL text into the command families
// a SQLite-backed server needs to treat structurally (transactions,
// PRAGMA, meta-DDL, GRANT/REVOKE, SHOW *, …) while passing everything else
// through as opaque SQL.
package sqlparser

import (
	"errors"
	"strings"
)

// ErrNoSuchElement is returned by Next when the parser is already
// exhausted.
var ErrNoSuchElement = errors.New("sqlparser: no more statements")

// ErrIllegalState is returned by Next (called again before acking the
// previous statement) or Remove (called with no pending statement).
var ErrIllegalState = errors.New("sqlparser: illegal parser state")

// Parser is a lazy, forward-only, restartable-at-start sequence of
// Statements over a fixed input string (spec §4.1). It is not safe for
// concurrent use; callers own it exclusively.
type Parser struct {
	src  string
	pos  int
	next int // position Remove() will commit to once acked

	pending bool
	closed  bool
	err     error
}

// NewParser returns a parser positioned at the start of src.
func NewParser(src string) *Parser {
	return &Parser{src: src}
}

// HasNext reports whether another statement is available. It does not
// mutate parser state, aside from memoizing a previously discovered error.
func (p *Parser) HasNext() bool {
	if p.closed || p.err != nil {
		return false
	}
	if p.pending {
		return true
	}
	sc := newScanner(p.src)
	sc.pos = p.pos
	if err := sc.skipSpaceAndComments(); err != nil {
		return true // Next() will surface the error
	}
	return sc.pos < len(p.src)
}

// Next parses and returns the next statement without advancing past it;
// the caller must call Remove before calling Next again.
func (p *Parser) Next() (*Statement, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.closed {
		return nil, ErrNoSuchElement
	}
	if p.pending {
		return nil, ErrIllegalState
	}

	stmt, newPos, err := parseOne(p.src, p.pos)
	if err != nil {
		p.err = err
		p.closed = true
		return nil, err
	}
	if stmt == nil {
		p.closed = true
		return nil, ErrNoSuchElement
	}

	p.pending = true
	p.next = newPos
	return stmt, nil
}

// Remove acknowledges the statement last returned by Next, advancing the
// parser past it.
func (p *Parser) Remove() error {
	if !p.pending {
		return ErrIllegalState
	}
	p.pending = false
	p.pos = p.next
	return nil
}

// parseOne parses a single statement starting at pos, returning the
// statement, the position to resume from, or (nil, pos, nil) at exhaustion.
func parseOne(src string, pos int) (*Statement, int, error) {
	lead := newScanner(src)
	lead.pos = pos

	sawComment := false
	for !lead.eof() {
		b := lead.peekByte()
		switch {
		case isSpace(b):
			lead.pos++
		case b == '-' && lead.peekByteAt(1) == '-':
			sawComment = true
			lead.pos += 2
			for !lead.eof() && lead.peekByte() != '\n' {
				lead.pos++
			}
		case b == '/' && lead.peekByteAt(1) == '*':
			sawComment = true
			if err := lead.skipBlockComment(); err != nil {
				return nil, 0, err
			}
		default:
			goto afterLead
		}
	}
afterLead:

	if lead.eof() {
		if pos == len(src) {
			return nil, pos, nil
		}
		return &Statement{
			Text:    src[pos:lead.pos],
			Command: CmdEmpty,
			IsEmpty: true,
			IsComment: sawComment,
		}, lead.pos, nil
	}

	if lead.peekByte() == ';' {
		return &Statement{
			Text:      src[pos:lead.pos],
			Command:   CmdEmpty,
			IsEmpty:   true,
			IsComment: sawComment,
		}, lead.pos + 1, nil
	}

	end, err := findStatementEnd(src, lead.pos)
	if err != nil {
		return nil, 0, err
	}

	sc := boundedScanner(src, lead.pos, end)
	stmt, err := dispatch(sc)
	if err != nil {
		return nil, 0, err
	}

	stmt.Text = src[pos:end]
	if stmt.ExecutableSQL == "" {
		stmt.ExecutableSQL = strings.TrimSpace(src[lead.pos:end])
	}
	stmt.computePredicates()

	newPos := end
	if newPos < len(src) && src[newPos] == ';' {
		newPos++
	}
	return stmt, newPos, nil
}

// dispatch peeks the first keyword of a bounded statement body and routes
// to the matching per-command recognizer. Unrecognized first words yield a
// plain Statement with the uppercased word as Command and no structured
// fields.
func dispatch(sc *scanner) (*Statement, error) {
	first := peekWord(sc)
	upper := strings.ToUpper(first)

	switch upper {
	case "SELECT":
		return recognizeSelect(sc)
	case "INSERT":
		return recognizeInsert(sc)
	case "UPDATE", "DELETE":
		return &Statement{Command: Command(upper)}, nil
	case "TRUNCATE":
		return recognizeTruncate(sc)
	case "BEGIN", "START":
		return recognizeBegin(sc)
	case "COMMIT", "END":
		return recognizeSimpleTxEnd(sc, Command(upper))
	case "ROLLBACK":
		return recognizeRollback(sc)
	case "SAVEPOINT":
		return recognizeSavepoint(sc)
	case "RELEASE":
		return recognizeRelease(sc)
	case "SET":
		return recognizeSet(sc)
	case "ATTACH":
		return recognizeAttach(sc)
	case "DETACH":
		return recognizeDetach(sc)
	case "PRAGMA":
		return recognizePragma(sc)
	case "CREATE":
		return recognizeCreate(sc)
	case "DROP":
		return recognizeDrop(sc)
	case "ALTER":
		return recognizeAlterUser(sc)
	case "GRANT":
		return recognizeGrantRevoke(sc, false)
	case "REVOKE":
		return recognizeGrantRevoke(sc, true)
	case "SHOW":
		return recognizeShow(sc)
	case "KILL":
		return recognizeKill(sc)
	default:
		return &Statement{Command: Command(upper), RawKeyword: upper}, nil
	}
}

// peekWord returns the next bare run of identifier characters without
// consuming it, used to decide which recognizer to dispatch to.
func peekWord(sc *scanner) string {
	start := sc.pos
	word := sc.readWord()
	sc.pos = start
	return word
}
