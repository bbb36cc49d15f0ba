package sqlite

import (
	"context"
	"os"
	"path/filepath"

	"github.com/maloquacious/gcsdb/internal/store"
)

// Initialize makes sure the database at dbPath exists with the user, session
// and mission tables. It creates missing parent directories, opens (or creates)
// the file, runs the table creation in one transaction and closes the
// connection on every path.
//
// Every failure is logged once and returned as a *store.InitializationError.
// Running it against an initialized database changes nothing.
func Initialize(ctx context.Context, dbPath string, opts Options) (err error) {
	log := opts.logger()
	defer func() {
		if err != nil {
			log.Error("error initializing database: %v", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return &store.InitializationError{Path: dbPath, Op: store.OpCreateDir, Err: err}
	}

	s := New(dbPath, opts)
	if err := s.Open(ctx); err != nil {
		return &store.InitializationError{Path: dbPath, Op: store.OpOpen, Err: err}
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn("close %s: %v", dbPath, cerr)
		}
	}()

	if err := s.InitSchema(ctx); err != nil {
		return &store.InitializationError{Path: dbPath, Op: store.OpCreateSchema, Err: err}
	}

	log.Info("database initialized at %s (schema version %d)", dbPath, SchemaVersion)
	return nil
}
