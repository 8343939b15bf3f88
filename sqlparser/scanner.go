package sqlparser

import (
	"strings"

	"github.com/little-pan/sqlite-server/srverr"
)

// scanner is a byte-oriented cursor over the input SQL text. It understands
// whitespace, line/block comments (nestable), and single/double-quoted
// string literals well enough to find top-level statement boundaries and
// top-level keyword occurrences without a full grammar.
type scanner struct {
	src   string
	pos   int
	limit int // virtual end of input; len(src) unless explicitly bounded
}

func newScanner(src string) *scanner {
	return &scanner{src: src, limit: len(src)}
}

// boundedScanner scans src but treats limit as end of input, used to parse
// one already-delimited statement body without re-finding its terminator.
func boundedScanner(src string, pos, limit int) *scanner {
	return &scanner{src: src, pos: pos, limit: limit}
}

func (sc *scanner) eof() bool { return sc.pos >= sc.limit }

func (sc *scanner) peekByte() byte {
	if sc.eof() {
		return 0
	}
	return sc.src[sc.pos]
}

func (sc *scanner) peekByteAt(off int) byte {
	if sc.pos+off >= sc.limit {
		return 0
	}
	return sc.src[sc.pos+off]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// skipSpaceAndComments advances past whitespace and comments, returning a
// parse error if a block comment or this statement's worth of input is
// unterminated. It does not cross a top-level statement terminator.
func (sc *scanner) skipSpaceAndComments() error {
	for !sc.eof() {
		b := sc.peekByte()
		switch {
		case isSpace(b):
			sc.pos++
		case b == '-' && sc.peekByteAt(1) == '-':
			sc.pos += 2
			for !sc.eof() && sc.peekByte() != '\n' {
				sc.pos++
			}
		case b == '/' && sc.peekByteAt(1) == '*':
			if err := sc.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (sc *scanner) skipBlockComment() error {
	start := sc.pos
	depth := 0
	for !sc.eof() {
		if sc.peekByte() == '/' && sc.peekByteAt(1) == '*' {
			depth++
			sc.pos += 2
			continue
		}
		if sc.peekByte() == '*' && sc.peekByteAt(1) == '/' {
			depth--
			sc.pos += 2
			if depth == 0 {
				return nil
			}
			continue
		}
		sc.pos++
	}
	return srverr.NewParseError(start, "unterminated block comment")
}

// skipString consumes a quoted string literal starting at the current
// position (which must be on the opening quote), honoring the
// doubled-quote escape.
func (sc *scanner) skipString() error {
	quote := sc.peekByte()
	start := sc.pos
	sc.pos++
	for {
		if sc.eof() {
			return srverr.NewParseError(start, "unterminated string literal")
		}
		b := sc.peekByte()
		if b == quote {
			if sc.peekByteAt(1) == quote {
				sc.pos += 2
				continue
			}
			sc.pos++
			return nil
		}
		sc.pos++
	}
}

// isIdentChar reports whether b can appear inside a bare identifier or
// keyword, used to enforce the "keyword must be followed by a non-identifier
// character" rule (spec §4.1, CREATE USER keyword fusion).
func isIdentChar(b byte) bool { return isIdentPart(b) }

// peekKeyword reports whether, at the current position, the case-insensitive
// keyword kw occurs as a whole token (not a prefix of a longer identifier).
func (sc *scanner) peekKeyword(kw string) bool {
	if sc.pos+len(kw) > sc.limit {
		return false
	}
	if !strings.EqualFold(sc.src[sc.pos:sc.pos+len(kw)], kw) {
		return false
	}
	if sc.pos+len(kw) < sc.limit && isIdentChar(sc.src[sc.pos+len(kw)]) {
		return false
	}
	return true
}

// consumeKeyword consumes kw if peekKeyword(kw) holds, returning whether it
// did, and skips trailing whitespace/comments.
func (sc *scanner) consumeKeyword(kw string) (bool, error) {
	if !sc.peekKeyword(kw) {
		return false, nil
	}
	sc.pos += len(kw)
	if err := sc.skipSpaceAndComments(); err != nil {
		return false, err
	}
	return true, nil
}

// readIdentifier reads a bare or quoted identifier starting at the current
// position, returning its unquoted text.
func (sc *scanner) readIdentifier() (string, error) {
	start := sc.pos
	if sc.peekByte() == '\'' || sc.peekByte() == '"' {
		if err := sc.skipString(); err != nil {
			return "", err
		}
		raw := sc.src[start+1 : sc.pos-1]
		quote := sc.src[start]
		raw = strings.ReplaceAll(raw, string(quote)+string(quote), string(quote))
		if err := sc.skipSpaceAndComments(); err != nil {
			return "", err
		}
		return raw, nil
	}
	if !isIdentStart(sc.peekByte()) {
		return "", srverr.NewParseError(sc.pos, "expected identifier")
	}
	for !sc.eof() && isIdentPart(sc.peekByte()) {
		sc.pos++
	}
	text := sc.src[start:sc.pos]
	if err := sc.skipSpaceAndComments(); err != nil {
		return "", err
	}
	return text, nil
}

// readWord reads a bare run of identifier characters without quote support,
// used for the first-keyword peek.
func (sc *scanner) readWord() string {
	start := sc.pos
	for !sc.eof() && isIdentPart(sc.peekByte()) {
		sc.pos++
	}
	return sc.src[start:sc.pos]
}

// findStatementEnd scans from pos (assumed at the start of a statement,
// past leading whitespace/comments already) to the next top-level ';' or
// end of input, honoring nested comments and string literals. It returns
// the index of the terminator (len(src) if none) or a parse error if an
// unmatched construct is found.
func findStatementEnd(src string, start int) (int, error) {
	sc := newScanner(src)
	sc.pos = start
	for !sc.eof() {
		b := sc.peekByte()
		switch {
		case b == ';':
			return sc.pos, nil
		case b == '\'' || b == '"':
			if err := sc.skipString(); err != nil {
				return 0, err
			}
		case b == '-' && sc.peekByteAt(1) == '-':
			sc.pos += 2
			for !sc.eof() && sc.peekByte() != '\n' {
				sc.pos++
			}
		case b == '/' && sc.peekByteAt(1) == '*':
			if err := sc.skipBlockComment(); err != nil {
				return 0, err
			}
		default:
			sc.pos++
		}
	}
	return sc.pos, nil
}

// rest returns the unconsumed portion of the bounded input.
func (sc *scanner) rest() string {
	if sc.pos >= sc.limit {
		return ""
	}
	return sc.src[sc.pos:sc.limit]
}

// readUserRef reads a 'user'@'host' (or bare user@host) reference. '@' must
// be present and immediately followed by a host identifier; its absence or
// an unfollowed '@' is reported as an unmatched '@'.
func (sc *scanner) readUserRef() (UserRef, error) {
	user, err := sc.readIdentifier()
	if err != nil {
		return UserRef{}, err
	}
	if sc.peekByte() != '@' {
		return UserRef{}, srverr.NewParseError(sc.pos, "unmatched '@' in user reference")
	}
	sc.pos++
	if sc.eof() || (!isIdentStart(sc.peekByte()) && sc.peekByte() != '\'' && sc.peekByte() != '"') {
		return UserRef{}, srverr.NewParseError(sc.pos, "unmatched '@' in user reference")
	}
	host, err := sc.readIdentifier()
	if err != nil {
		return UserRef{}, err
	}
	return UserRef{User: user, Host: host}, nil
}

// readSignedNumber reads an optionally-signed decimal or 0x-hex integer
// literal, classifying it for PRAGMA value parsing. A second decimal point
// is a parse error (spec §8 boundary behavior: "PRAGMA a = .0.0" rejected).
func (sc *scanner) readSignedNumber() (text string, kind PragmaValueKind, err error) {
	start := sc.pos
	if sc.peekByte() == '+' || sc.peekByte() == '-' {
		sc.pos++
	}
	if sc.peekByte() == '0' && (sc.peekByteAt(1) == 'x' || sc.peekByteAt(1) == 'X') {
		sc.pos += 2
		hexStart := sc.pos
		for !sc.eof() && isHexDigit(sc.peekByte()) {
			sc.pos++
		}
		if sc.pos == hexStart {
			return "", 0, srverr.NewParseError(start, "malformed hex literal")
		}
		text = sc.src[start:sc.pos]
		if err := sc.skipSpaceAndComments(); err != nil {
			return "", 0, err
		}
		return text, PragmaValueHex, nil
	}

	sawDigit := false
	sawDot := false
	for !sc.eof() {
		b := sc.peekByte()
		if isDigit(b) {
			sc.pos++
			sawDigit = true
			continue
		}
		if b == '.' {
			if sawDot {
				return "", 0, srverr.NewParseError(sc.pos, "malformed numeric literal")
			}
			sawDot = true
			sc.pos++
			continue
		}
		break
	}
	if !sawDigit {
		return "", 0, srverr.NewParseError(start, "malformed numeric literal")
	}
	text = sc.src[start:sc.pos]
	if err := sc.skipSpaceAndComments(); err != nil {
		return "", 0, err
	}
	if sawDot {
		return text, PragmaValueDecimal, nil
	}
	return text, PragmaValueInteger, nil
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// findTopLevelKeywordSeq scans [start, limit) for the first top-level
// occurrence of the keyword sequence kws (whitespace/comments allowed
// between words), skipping over string literals and comments. It returns
// the byte offsets bracketing the match, or (-1, -1) if not found.
func findTopLevelKeywordSeq(src string, start, limit int, kws ...string) (matchStart, matchEnd int, err error) {
	p := start
	for p < limit {
		b := src[p]
		switch {
		case b == '\'' || b == '"':
			tmp := boundedScanner(src, p, limit)
			if err := tmp.skipString(); err != nil {
				return -1, -1, err
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
				return -1, -1, err
			}
			p = tmp.pos
		default:
			tmp := boundedScanner(src, p, limit)
			matched := true
			for i, kw := range kws {
				if !tmp.peekKeyword(kw) {
					matched = false
					break
				}
				tmp.pos += len(kw)
				if i < len(kws)-1 {
					if err := tmp.skipSpaceAndComments(); err != nil {
						return -1, -1, err
					}
				}
			}
			if matched {
				return p, tmp.pos, nil
			}
			p++
		}
	}
	return -1, -1, nil
}
