package metadb

import (
	"strings"
	"testing"

	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) *sqlparser.Statement {
	t.Helper()
	p := sqlparser.NewParser(src)
	require.True(t, p.HasNext())
	stmt, err := p.Next()
	require.NoError(t, err)
	return stmt
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestRenderGrant_MatchesSpecExample(t *testing.T) {
	stmt := parseOne(t, "grant all on database testdb to test@localhost")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Equal(t,
		normalize("replace into 'meta'.db(host, user, db) values ('localhost', 'test', 'all')"),
		normalize(got),
	)
}

func TestRenderRevoke_ProducesDelete(t *testing.T) {
	stmt := parseOne(t, "revoke all on database testdb from test@localhost")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Contains(t, got, "delete from 'meta'.db")
}

func TestRenderCreateDatabase_NoLocation(t *testing.T) {
	stmt := parseOne(t, "create database testdb")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Equal(t,
		normalize("insert into 'meta'.catalog(db, dir) values('testdb', NULL)"),
		normalize(got),
	)
}

func TestRenderCreateDatabase_WithLocation(t *testing.T) {
	stmt := parseOne(t, "create database testdb location '/data/testdb'")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Contains(t, got, "'/data/testdb'")
}

func TestRenderCreateUser_Insert(t *testing.T) {
	stmt := parseOne(t, "create user 'bob'@'%' identified by 'secret'")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Contains(t, got, "insert into 'meta'.user")
	require.Contains(t, got, "'secret'")
}

func TestRenderAlterUser_Update(t *testing.T) {
	stmt := parseOne(t, "alter user 'bob'@'%' superuser")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Contains(t, got, "update 'meta'.user set")
	require.Contains(t, got, "sa = 1")
}

func TestRenderDropUser_MatchesOrClauseShape(t *testing.T) {
	stmt := parseOne(t, "drop user 'bob'@'%', 'alice'@'10.0.0.1'")
	got, err := Render(stmt, "meta")
	require.NoError(t, err)
	require.Contains(t, got, "delete from 'meta'.user")
	require.Contains(t, got, " or ")
}
