package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/maloquacious/gcsdb/internal/logger"
	"github.com/maloquacious/gcsdb/internal/store"
	_ "modernc.org/sqlite"
)

// Options tune how the database file is opened.
type Options struct {
	// JournalMode is applied with PRAGMA journal_mode. Empty means WAL.
	JournalMode string
	// BusyTimeout bounds how long a connection waits on another process's lock.
	BusyTimeout time.Duration
	// ReadOnly opens the file with mode=ro, leaves the journal mode alone
	// and rejects writes.
	ReadOnly bool
	Logger   logger.Logger
}

func (o Options) logger() logger.Logger {
	if o.Logger == nil {
		return logger.Default
	}
	return o.Logger
}

var journalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true,
	"MEMORY": true, "WAL": true, "OFF": true,
}

// uriPath escapes the characters that end the path part of a file: URI.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// SQLiteStore implements the Store interface using modernc.org/sqlite.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	opts   Options
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLiteStore.
func New(dbPath string, opts Options) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
		opts:   opts,
	}
}

// dsn carries the pragmas in the connection string so that every
// connection the driver opens gets them, foreign_keys in particular.
func (s *SQLiteStore) dsn() (string, error) {
	mode := strings.ToUpper(strings.TrimSpace(s.opts.JournalMode))
	if mode == "" {
		mode = "WAL"
	}
	if !journalModes[mode] {
		return "", fmt.Errorf("unsupported journal mode %q", s.opts.JournalMode)
	}
	timeout := s.opts.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", timeout.Milliseconds()),
	}
	if s.opts.ReadOnly {
		// a file: URI so sqlite sees mode=ro and never creates or writes the file
		pragmas = append([]string{"mode=ro"}, append(pragmas, "_pragma=query_only(1)")...)
		return "file:" + uriPath.Replace(s.dbPath) + "?" + strings.Join(pragmas, "&"), nil
	}
	pragmas = append(pragmas, fmt.Sprintf("_pragma=journal_mode(%s)", mode))
	return s.dbPath + "?" + strings.Join(pragmas, "&"), nil
}

// Open opens the SQLite database with safe defaults.
// The file is created if it does not exist.
func (s *SQLiteStore) Open(ctx context.Context) error {
	dsn, err := s.dsn()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: the bootstrap is sequential and a transaction must see its own DDL
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to open database: %w", err)
	}

	s.opts.logger().Debug("opened %s", s.dbPath)
	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// InitSchema creates the user, session and mission tables in a single
// transaction and stamps the schema version. Existing tables and rows are
// left untouched. A database stamped with a newer version is refused.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if s.db == nil {
		return store.ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	for _, t := range schemaTables {
		if _, err := tx.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
		s.opts.logger().Debug("ensured table %s", t.name)
	}

	if version < SchemaVersion {
		// PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState(ctx context.Context) (store.StoreState, error) {
	if s.db == nil {
		return store.StateMissing, store.ErrNotOpen
	}

	present, err := s.presentTables(ctx)
	if err != nil {
		return store.StateUninitialized, err
	}

	switch {
	case len(present) == 0:
		return store.StateUninitialized, nil
	case len(present) < len(schemaTables):
		return store.StatePartial, nil
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to get schema version: %w", err)
	}
	if version != SchemaVersion {
		return store.StateVersionMismatch, nil
	}

	return store.StateReady, nil
}

// SchemaVersion returns PRAGMA user_version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, store.ErrNotOpen
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// presentTables returns the names of the schema tables found in sqlite_master.
func (s *SQLiteStore) presentTables(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		existing[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	present := map[string]bool{}
	for _, t := range schemaTables {
		if existing[t.name] {
			present[t.name] = true
		}
	}
	return present, nil
}

// Describe introspects the schema tables that exist, in declaration order.
func (s *SQLiteStore) Describe(ctx context.Context) ([]store.Table, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}

	present, err := s.presentTables(ctx)
	if err != nil {
		return nil, err
	}

	var tables []store.Table
	for _, t := range schemaTables {
		if !present[t.name] {
			continue
		}
		table, err := s.describeTable(ctx, t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", t.name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *SQLiteStore) describeTable(ctx context.Context, name string) (store.Table, error) {
	table := store.Table{Name: name}

	columns, err := s.tableColumns(ctx, name)
	if err != nil {
		return table, err
	}
	unique, err := s.uniqueColumns(ctx, name)
	if err != nil {
		return table, err
	}
	for i := range columns {
		columns[i].Unique = unique[strings.ToLower(columns[i].Name)]
	}
	table.Columns = columns

	if table.ForeignKeys, err = s.foreignKeys(ctx, name); err != nil {
		return table, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&table.Rows); err != nil {
		return table, fmt.Errorf("count rows: %w", err)
	}
	return table, nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, name string) ([]store.Column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var columns []store.Column
	for rows.Next() {
		var c store.Column
		var pk int
		if err := rows.Scan(&c.Name, &c.Type, &c.NotNull, &pk); err != nil {
			return nil, fmt.Errorf("table info: %w", err)
		}
		c.PrimaryKey = pk > 0
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// uniqueColumns reports columns covered by a single-column unique index
// other than the primary key's.
func (s *SQLiteStore) uniqueColumns(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, "unique", origin FROM pragma_index_list(?)`, name)
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	var indexes []string
	for rows.Next() {
		var index, origin string
		var isUnique bool
		if err := rows.Scan(&index, &isUnique, &origin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("index list: %w", err)
		}
		if isUnique && origin != "pk" {
			indexes = append(indexes, index)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("index list: %w", err)
	}
	// release the only connection before querying index_info
	rows.Close()

	unique := map[string]bool{}
	for _, index := range indexes {
		cols, err := s.indexColumns(ctx, index)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			unique[strings.ToLower(cols[0])] = true
		}
	}
	return unique, nil
}

func (s *SQLiteStore) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?)`, index)
	if err != nil {
		return nil, fmt.Errorf("index info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col sql.NullString
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("index info: %w", err)
		}
		cols = append(cols, col.String)
	}
	return cols, rows.Err()
}

func (s *SQLiteStore) foreignKeys(ctx context.Context, name string) ([]store.ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "from", "table", "to" FROM pragma_foreign_key_list(?)`, name)
	if err != nil {
		return nil, fmt.Errorf("foreign key list: %w", err)
	}
	defer rows.Close()

	var fks []store.ForeignKey
	for rows.Next() {
		var fk store.ForeignKey
		var to sql.NullString
		if err := rows.Scan(&fk.Column, &fk.RefTable, &to); err != nil {
			return nil, fmt.Errorf("foreign key list: %w", err)
		}
		fk.RefColumn = to.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
