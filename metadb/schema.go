// Package metadb is the private registry of spec §4.2: the user, db and
// catalog tables that back authentication, access control and database
// bookkeeping, plus the deterministic renderer that turns a parsed
// meta-affecting Statement into exact SQL against a given schema alias.
package metadb

// Schemas returns the DDL for the meta database's three tables, applied
// once at Open time. The text is hand-built, not goqu, the catalog
// renderer below must reproduce literal SQL bit-for-bit (spec §4.2), and
// table creation is most naturally kept in the same hand-built style.
func Schemas() []string {
	return []string{
		`create table if not exists user (
			host text not null,
			user text not null,
			password text not null default '',
			protocol text not null default 'pg',
			auth_method text not null default 'md5',
			sa integer not null default 0,
			unique(host, user, protocol)
		)`,
		`create table if not exists db (
			host text not null,
			user text not null,
			db text not null,
			unique(host, user, db)
		)`,
		`create table if not exists catalog (
			db text not null unique,
			dir text
		)`,
	}
}
