package sqlite

import "github.com/maloquacious/gcsdb/internal/store"

// SchemaVersion is recorded in PRAGMA user_version once the tables exist.
// Files created before versioning carry 0 and are stamped on the next run.
const SchemaVersion = 1

// tableDef pairs a table's DDL with the shape Describe should report for it.
// The DDL text is kept byte-compatible with databases created by earlier
// tooling so that CREATE TABLE IF NOT EXISTS never diverges from them.
type tableDef struct {
	name  string
	ddl   string
	shape store.Table
}

var schemaTables = []tableDef{
	{
		name: "user",
		ddl: `CREATE TABLE IF NOT EXISTS user (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL
)`,
		shape: store.Table{
			Name: "user",
			Columns: []store.Column{
				{Name: "id", Type: "TEXT", NotNull: true, PrimaryKey: true},
				{Name: "username", Type: "TEXT", NotNull: true, Unique: true},
				{Name: "password_hash", Type: "TEXT", NotNull: true},
			},
		},
	},
	{
		name: "session",
		ddl: `CREATE TABLE IF NOT EXISTS session (
    id TEXT NOT NULL PRIMARY KEY,
    expires_at INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES user(id)
)`,
		shape: store.Table{
			Name: "session",
			Columns: []store.Column{
				{Name: "id", Type: "TEXT", NotNull: true, PrimaryKey: true},
				{Name: "expires_at", Type: "INTEGER", NotNull: true},
				{Name: "user_id", Type: "TEXT", NotNull: true},
			},
			ForeignKeys: []store.ForeignKey{
				{Column: "user_id", RefTable: "user", RefColumn: "id"},
			},
		},
	},
	{
		// actions holds JSON-encoded text; it is not validated here.
		name: "mission",
		ddl: `CREATE TABLE IF NOT EXISTS mission (
    id TEXT NOT NULL PRIMARY KEY,
    title TEXT NOT NULL,
    actions JSON NOT NULL,
    isLoaded BOOLEAN NOT NULL
)`,
		shape: store.Table{
			Name: "mission",
			Columns: []store.Column{
				{Name: "id", Type: "TEXT", NotNull: true, PrimaryKey: true},
				{Name: "title", Type: "TEXT", NotNull: true},
				{Name: "actions", Type: "JSON", NotNull: true},
				{Name: "isLoaded", Type: "BOOLEAN", NotNull: true},
			},
		},
	},
}

// Expected returns the schema every initialized database must match.
func Expected() []store.Table {
	tables := make([]store.Table, 0, len(schemaTables))
	for _, t := range schemaTables {
		shape := t.shape
		shape.Columns = append([]store.Column(nil), t.shape.Columns...)
		shape.ForeignKeys = append([]store.ForeignKey(nil), t.shape.ForeignKeys...)
		tables = append(tables, shape)
	}
	return tables
}
