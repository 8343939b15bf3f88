package sqlparser

import (
	"testing"
)

func parseAll(t *testing.T, src string) []*Statement {
	t.Helper()
	p := NewParser(src)
	var out []*Statement
	for p.HasNext() {
		stmt, err := p.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, stmt)
		if err := p.Remove(); err != nil {
			t.Fatalf("Remove() error: %v", err)
		}
	}
	return out
}

func TestParseSplitting(t *testing.T) {
	src := "begIn deferred transaction;/*tx*/begin deferred/*tx*/work--;"
	stmts := parseAll(t, src)

	var real []*Statement
	for _, s := range stmts {
		if !s.IsEmpty {
			real = append(real, s)
		}
	}
	if len(real) != 2 {
		t.Fatalf("expected 2 non-empty statements, got %d", len(real))
	}
	for _, s := range real {
		if s.Command != CmdBegin {
			t.Errorf("command = %q, want BEGIN", s.Command)
		}
		if s.Transaction.Mode.Behavior != BehaviorDeferred {
			t.Errorf("behavior = %q, want DEFERRED", s.Transaction.Mode.Behavior)
		}
		if s.Transaction.Mode.Isolation != IsolationSerializable {
			t.Errorf("isolation = %q, want SERIALIZABLE", s.Transaction.Mode.Isolation)
		}
		if s.Transaction.Mode.ReadOnly != nil {
			t.Errorf("read-only = %v, want nil", *s.Transaction.Mode.ReadOnly)
		}
	}
}

func TestParsePartitionInvariant(t *testing.T) {
	s1 := "select 1"
	s2 := "select 2"
	combined := parseAll(t, s1+";"+s2)
	left := parseAll(t, s1+";")
	right := parseAll(t, s2)

	if len(combined) != len(left)+len(right) {
		t.Fatalf("parse(s1+\";\"+s2) yielded %d statements, want %d", len(combined), len(left)+len(right))
	}
	for i := range left {
		if combined[i].Command != left[i].Command {
			t.Errorf("prefix mismatch at %d: %q vs %q", i, combined[i].Command, left[i].Command)
		}
	}
}

func TestSelectForUpdateStrip(t *testing.T) {
	stmts := parseAll(t, "select *from t/**for update*/for update --;")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	s := stmts[0]
	if s.Command != CmdSelect {
		t.Fatalf("command = %q, want SELECT", s.Command)
	}
	if !s.IsForUpdate {
		t.Fatalf("expected IsForUpdate = true")
	}
	want := "select *from t/**for update*/"
	if s.ExecutableSQL != want {
		t.Errorf("executable SQL = %q, want %q", s.ExecutableSQL, want)
	}
}

func TestGrantRendering(t *testing.T) {
	stmts := parseAll(t, "grant all on database testdb to test@localhost")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	s := stmts[0]
	if s.Command != CmdGrant {
		t.Fatalf("command = %q, want GRANT", s.Command)
	}
	if len(s.Grant.Privileges) != 1 || s.Grant.Privileges[0] != "all" {
		t.Errorf("privileges = %v, want [all]", s.Grant.Privileges)
	}
	if len(s.Grant.Databases) != 1 || s.Grant.Databases[0] != "testdb" {
		t.Errorf("databases = %v, want [testdb]", s.Grant.Databases)
	}
	if len(s.Grant.Grantees) != 1 || s.Grant.Grantees[0] != (UserRef{User: "test", Host: "localhost"}) {
		t.Errorf("grantees = %v, want [{test localhost}]", s.Grant.Grantees)
	}
}

func TestTruncateRewrite(t *testing.T) {
	stmts := parseAll(t, "truncate table main.t1")
	s := stmts[0]
	if s.Command != CmdDelete {
		t.Fatalf("command = %q, want DELETE", s.Command)
	}
	if s.Truncate.Schema != "main" || s.Truncate.Table != "t1" {
		t.Errorf("truncate fields = %+v", s.Truncate)
	}
	if s.ExecutableSQL != "delete from main.t1" {
		t.Errorf("executable SQL = %q", s.ExecutableSQL)
	}
}

func TestUnterminatedBlockCommentIsParseError(t *testing.T) {
	p := NewParser("select 1 /* oops")
	if !p.HasNext() {
		t.Fatalf("expected HasNext true so the error surfaces from Next")
	}
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected parse error for unterminated block comment")
	}
}

func TestUnterminatedStringIsParseError(t *testing.T) {
	p := NewParser("select 'oops")
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected parse error for unterminated string")
	}
}

func TestKeywordFusionRejected(t *testing.T) {
	cases := []string{
		"create user 'u'@'h' nosuperusersuperuser",
		"create user 'u'@'h' identified withmd5trust",
	}
	for _, src := range cases {
		p := NewParser(src)
		if _, err := p.Next(); err == nil {
			t.Errorf("expected parse error for fused keywords in %q", src)
		}
	}
}

func TestPragmaDecimalEdgeCases(t *testing.T) {
	rejected := []string{"pragma a = .0.0"}
	for _, src := range rejected {
		p := NewParser(src)
		if _, err := p.Next(); err == nil {
			t.Errorf("expected parse error for %q", src)
		}
	}

	accepted := map[string]PragmaValueKind{
		"pragma a = .0":    PragmaValueDecimal,
		"pragma a = -.0":   PragmaValueDecimal,
		"pragma a = +.0":   PragmaValueDecimal,
		"pragma a = -1.0":  PragmaValueDecimal,
		"pragma a = 1.0":   PragmaValueDecimal,
		"pragma a = 0x1000": PragmaValueHex,
	}
	for src, wantKind := range accepted {
		p := NewParser(src)
		stmt, err := p.Next()
		if err != nil {
			t.Errorf("%q: unexpected error: %v", src, err)
			continue
		}
		if stmt.Pragma.ValueKind != wantKind {
			t.Errorf("%q: value kind = %v, want %v", src, stmt.Pragma.ValueKind, wantKind)
		}
	}
}

func TestGrantAmbiguousDoubleCommaRejected(t *testing.T) {
	p := NewParser("grant all , on on database testdb to test@localhost")
	if _, err := p.Next(); err == nil {
		t.Errorf("expected the ambiguous double-comma GRANT to be rejected")
	}
}

func TestShowGrantsHostCanonicalization(t *testing.T) {
	stmts := parseAll(t, "show grants for 'bob'")
	s := stmts[0]
	if s.Show.Kind != ShowGrants {
		t.Fatalf("kind = %v, want GRANTS", s.Show.Kind)
	}
	if s.Show.GrantUser.Host != "%" {
		t.Errorf("host = %q, want %%", s.Show.GrantUser.Host)
	}
}

func TestIteratorExhaustionContract(t *testing.T) {
	p := NewParser("select 1")
	if _, err := p.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Next(); err != ErrIllegalState {
		t.Fatalf("expected ErrIllegalState before Remove, got %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Fatalf("unexpected Remove error: %v", err)
	}
	if p.HasNext() {
		t.Fatalf("expected exhaustion after single statement")
	}
	if _, err := p.Next(); err != ErrNoSuchElement {
		t.Fatalf("expected ErrNoSuchElement, got %v", err)
	}
	if err := p.Remove(); err != ErrIllegalState {
		t.Fatalf("expected ErrIllegalState for Remove with no pending statement, got %v", err)
	}
}

func TestCommandIsQueryIsTransactionPartition(t *testing.T) {
	cases := map[string]struct {
		isQuery, isTransaction bool
	}{
		"select 1":               {true, false},
		"show tables":            {true, false},
		"attach 'x' as y":        {true, false},
		"pragma foo":             {true, false},
		"pragma foo = 1":         {false, false},
		"begin":                  {false, true},
		"commit":                 {false, true},
		"insert into t(a) values(1)": {false, false},
	}
	for src, want := range cases {
		p := NewParser(src)
		stmt, err := p.Next()
		if err != nil {
			t.Errorf("%q: unexpected error: %v", src, err)
			continue
		}
		if stmt.IsQuery != want.isQuery {
			t.Errorf("%q: IsQuery = %v, want %v", src, stmt.IsQuery, want.isQuery)
		}
		if stmt.IsTransaction != want.isTransaction {
			t.Errorf("%q: IsTransaction = %v, want %v", src, stmt.IsTransaction, want.isTransaction)
		}
	}
}

func TestSleepRecognition(t *testing.T) {
	cases := []struct {
		src  string
		want int
	}{
		{"select sleep(1)", 1},
		{"select sleep( 1/**/) ;", 1},
		{"select sleep(0x10/**/) ;", 16},
		{"select 1, sleep(1) ;", 1},
		{"select 1, sleep(1) -- sleep(2);", 1},
		{"select 1, sleep(1) /*sleep(2)*/;", 1},
		{"select /*sleep(0)*/1, Sleep(1) ;", 1},
		{"select 'sleep(0)', 1, SLEEP(1) ;", 1},
		{`select "sleep(0)", 1, sleep(1) ;`, 1},
	}
	for _, c := range cases {
		p := NewParser(c.src)
		stmt, err := p.Next()
		if err != nil {
			t.Errorf("%q: unexpected error: %v", c.src, err)
			continue
		}
		if stmt.SleepSeconds != c.want {
			t.Errorf("%q: SleepSeconds = %d, want %d", c.src, stmt.SleepSeconds, c.want)
		}
	}
}

func TestSleepRecognitionRejectsMultipleOrNonTrailing(t *testing.T) {
	cases := []string{
		"select sleep(1), sleep(2);",
		"select sleep(1), 1 ;",
		"select 1, Sleep(1), sleep(2);",
		"select sleep(1) from t;",
	}
	for _, src := range cases {
		p := NewParser(src)
		if _, err := p.Next(); err == nil {
			t.Errorf("%q: expected parse error, got none", src)
		}
	}
}

func TestAlterUserFallback(t *testing.T) {
	p := NewParser("alter table t add column x int")
	stmt, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Command != "ALTER" {
		t.Fatalf("command = %q, want ALTER", stmt.Command)
	}
	if stmt.User != nil {
		t.Fatalf("expected nil User fields for a non-ALTER-USER statement")
	}
}
