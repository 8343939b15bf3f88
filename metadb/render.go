package metadb

import (
	"fmt"
	"strings"

	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/little-pan/sqlite-server/srverr"
)

// quote renders a single-quoted SQL string literal, doubling embedded
// quotes (spec §4.1's escape rule, reused here for rendering).
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Render turns a meta-affecting Statement into the exact SQL to run
// against alias (spec §4.2). It re-parses the rendered text and fails
// with ParseError if the result does not come back as the single
// expected command, a defense against a rendering bug silently
// producing syntactically different SQL than intended.
func Render(stmt *sqlparser.Statement, alias string) (string, error) {
	var sqlText string
	var wantCommand sqlparser.Command

	switch stmt.Command {
	case sqlparser.CmdAlterUser, sqlparser.CmdCreateUser:
		sqlText = renderUpsertUser(stmt, alias)
		wantCommand = sqlparser.CmdUpdate
		if stmt.Command == sqlparser.CmdCreateUser {
			wantCommand = sqlparser.CmdInsert
			sqlText = renderInsertUser(stmt, alias)
		}
	case sqlparser.CmdDropUser:
		sqlText = renderDropUser(stmt, alias)
		wantCommand = sqlparser.CmdDelete
	case sqlparser.CmdCreateDatabase:
		sqlText = renderCreateDatabase(stmt, alias)
		wantCommand = sqlparser.CmdInsert
	case sqlparser.CmdDropDatabase:
		sqlText = renderDropDatabase(stmt, alias)
		wantCommand = sqlparser.CmdDelete
	case sqlparser.CmdGrant, sqlparser.CmdRevoke:
		sqlText = renderGrant(stmt, alias)
		wantCommand = sqlparser.Command("REPLACE") // REPLACE INTO has no dedicated recognizer; it falls through to the generic first-keyword command tag
		if stmt.Grant.Revoke {
			wantCommand = sqlparser.CmdDelete
		}
	default:
		return "", fmt.Errorf("metadb: %s is not a meta statement", stmt.Command)
	}

	p := sqlparser.NewParser(sqlText)
	if !p.HasNext() {
		return "", srverr.NewParseError(0, "rendered meta SQL %q did not parse as any statement", sqlText)
	}
	reparsed, err := p.Next()
	if err != nil {
		return "", srverr.NewParseError(0, "rendered meta SQL %q failed to re-parse: %v", sqlText, err)
	}
	if reparsed.Command != wantCommand {
		return "", srverr.NewParseError(0, "rendered meta SQL %q re-parsed as %s, want %s", sqlText, reparsed.Command, wantCommand)
	}
	return sqlText, nil
}

// renderInsertUser implements CREATE USER →
// insert into '<alias>'.user(host, user, password, protocol, auth_method, sa) values (...)
func renderInsertUser(stmt *sqlparser.Statement, alias string) string {
	u := stmt.User
	sa := 0
	if u.Super {
		sa = 1
	}
	return fmt.Sprintf(
		"insert into %s.user(host, user, password, protocol, auth_method, sa) values (%s, %s, %s, %s, %s, %d)",
		quote(alias), quote(u.Ref.Host), quote(u.Ref.User), quote(u.Password), quote(u.Protocol), quote(string(u.AuthMethod)), sa,
	)
}

// renderUpsertUser implements ALTER USER →
// update '<alias>'.user set <assignments> where host = … and user = … and protocol = …
// with assignments limited to the attributes the statement actually set.
func renderUpsertUser(stmt *sqlparser.Statement, alias string) string {
	u := stmt.User
	protocol := u.Protocol
	if protocol == "" {
		protocol = "pg"
	}
	var assigns []string
	if u.SetSuper {
		sa := 0
		if u.Super {
			sa = 1
		}
		assigns = append(assigns, fmt.Sprintf("sa = %d", sa))
	}
	if u.SetPassword {
		assigns = append(assigns, fmt.Sprintf("password = %s", quote(u.Password)))
	}
	if u.Protocol != "" {
		assigns = append(assigns, fmt.Sprintf("protocol = %s", quote(u.Protocol)))
	}
	if u.AuthMethod != "" {
		assigns = append(assigns, fmt.Sprintf("auth_method = %s", quote(string(u.AuthMethod))))
	}
	if len(assigns) == 0 {
		assigns = append(assigns, "sa = sa") // ALTER USER with no clauses still must be a valid update
	}
	return fmt.Sprintf(
		"update %s.user set %s where host = %s and user = %s and protocol = %s",
		quote(alias), strings.Join(assigns, ", "), quote(u.Ref.Host), quote(u.Ref.User), quote(protocol),
	)
}

// renderDropUser implements DROP USER →
// delete from '<alias>'.user where (host=? and user=? and protocol=?) [or …]
func renderDropUser(stmt *sqlparser.Statement, alias string) string {
	refs := stmt.User.DropRefs
	if len(refs) == 0 {
		refs = []sqlparser.UserRef{stmt.User.Ref}
	}
	clauses := make([]string, len(refs))
	for i, ref := range refs {
		clauses[i] = fmt.Sprintf("(host = %s and user = %s and protocol = %s)", quote(ref.Host), quote(ref.User), quote("pg"))
	}
	return fmt.Sprintf("delete from %s.user where %s", quote(alias), strings.Join(clauses, " or "))
}

// renderCreateDatabase implements CREATE DATABASE →
// insert into '<alias>'.catalog(db, dir) values(<db>, <dir-or-NULL>)
func renderCreateDatabase(stmt *sqlparser.Statement, alias string) string {
	d := stmt.Database
	dir := "NULL"
	if d.HasLocation {
		dir = quote(d.Location)
	}
	return fmt.Sprintf("insert into %s.catalog(db, dir) values(%s, %s)", quote(alias), quote(d.Name), dir)
}

// renderDropDatabase implements DROP DATABASE → delete from
// '<alias>'.catalog where db = <db>, the natural DELETE counterpart of
// renderCreateDatabase's INSERT (the rendering rules of spec §4.2 name
// CREATE/ALTER/GRANT/DROP-USER explicitly; DROP DATABASE follows the
// same catalog-table shape by symmetry).
func renderDropDatabase(stmt *sqlparser.Statement, alias string) string {
	d := stmt.Database
	return fmt.Sprintf("delete from %s.catalog where db = %s", quote(alias), quote(d.Name))
}

// renderGrant implements GRANT →
// replace into '<alias>'.db(host,user,db) values (…)…
//
// The db table has no privilege column, so a grant of the sentinel
// privilege "all" is recorded as db='all', a wildcard row meaning this
// user may access every database, matching the literal example of spec
// §8 scenario 3 verbatim. A grant of a specific privilege (select,
// insert, …) instead records the actual database name, since only the
// ALL form is meant to collapse into the wildcard. REVOKE deletes the
// matching row(s) instead of replacing them.
func renderGrant(stmt *sqlparser.Statement, alias string) string {
	g := stmt.Grant
	var rows []string
	for _, grantee := range g.Grantees {
		for _, priv := range g.Privileges {
			dbValue := priv
			if priv != "all" {
				for _, db := range g.Databases {
					rows = append(rows, fmt.Sprintf("(%s, %s, %s)", quote(grantee.Host), quote(grantee.User), quote(db)))
				}
				continue
			}
			rows = append(rows, fmt.Sprintf("(%s, %s, %s)", quote(grantee.Host), quote(grantee.User), quote(dbValue)))
		}
	}
	verb := "replace into"
	if g.Revoke {
		return renderRevoke(g, alias)
	}
	return fmt.Sprintf("%s %s.db(host, user, db) values %s", verb, quote(alias), strings.Join(rows, ", "))
}

func renderRevoke(g *sqlparser.GrantFields, alias string) string {
	var clauses []string
	for _, grantee := range g.Grantees {
		for _, priv := range g.Privileges {
			dbValue := priv
			if priv == "all" {
				clauses = append(clauses, fmt.Sprintf("(host = %s and user = %s and db = %s)", quote(grantee.Host), quote(grantee.User), quote(dbValue)))
				continue
			}
			for _, db := range g.Databases {
				clauses = append(clauses, fmt.Sprintf("(host = %s and user = %s and db = %s)", quote(grantee.Host), quote(grantee.User), quote(db)))
			}
		}
	}
	return fmt.Sprintf("delete from %s.db where %s", quote(alias), strings.Join(clauses, " or "))
}
