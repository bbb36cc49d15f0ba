package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExists(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name      string
		setup     func(string) error
		wantExist bool
		wantError bool
	}{
		{
			name: "database exists",
			setup: func(dbPath string) error {
				f, err := os.Create(dbPath)
				if err != nil {
					return err
				}
				return f.Close()
			},
			wantExist: true,
			wantError: false,
		},
		{
			name: "database does not exist",
			setup: func(dbPath string) error {
				return nil
			},
			wantExist: false,
			wantError: false,
		},
		{
			name: "database path is directory",
			setup: func(dbPath string) error {
				return os.Mkdir(dbPath, 0755)
			},
			wantExist: false,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDir := filepath.Join(tmpDir, tt.name)
			if err := os.Mkdir(testDir, 0755); err != nil {
				t.Fatalf("failed to create test dir: %v", err)
			}
			dbPath := filepath.Join(testDir, "data.db")

			if err := tt.setup(dbPath); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			exists, err := CheckExists(dbPath)

			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if exists != tt.wantExist {
				t.Errorf("got exists=%v, want %v", exists, tt.wantExist)
			}
		})
	}
}

func TestStoreStateString(t *testing.T) {
	tests := map[StoreState]string{
		StateMissing:         "missing",
		StateUninitialized:   "uninitialized",
		StatePartial:         "partial",
		StateVersionMismatch: "version_mismatch",
		StateReady:           "ready",
		StoreState(42):       "StoreState(42)",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}

	text, err := StateReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(text))

	var state StoreState
	require.NoError(t, state.UnmarshalText([]byte("partial")))
	assert.Equal(t, StatePartial, state)
	assert.Error(t, state.UnmarshalText([]byte("sideways")))
}

func TestInitializationError(t *testing.T) {
	cause := &fs.PathError{Op: "mkdir", Path: "/x", Err: fs.ErrPermission}
	var err error = &InitializationError{Path: "/x/data.db", Op: OpCreateDir, Err: cause}

	assert.Equal(t, "initialize /x/data.db: create directory: mkdir /x: permission denied", err.Error())
	assert.ErrorIs(t, err, fs.ErrPermission)

	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, OpCreateDir, initErr.Op)
}

func userTable() Table {
	return Table{
		Name: "user",
		Columns: []Column{
			{Name: "id", Type: "TEXT", NotNull: true, PrimaryKey: true},
			{Name: "username", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "password_hash", Type: "TEXT", NotNull: true},
		},
	}
}

func sessionTable() Table {
	return Table{
		Name: "session",
		Columns: []Column{
			{Name: "id", Type: "TEXT", NotNull: true, PrimaryKey: true},
			{Name: "expires_at", Type: "INTEGER", NotNull: true},
			{Name: "user_id", Type: "TEXT", NotNull: true},
		},
		ForeignKeys: []ForeignKey{{Column: "user_id", RefTable: "user", RefColumn: "id"}},
	}
}

func TestDiff(t *testing.T) {
	want := []Table{userTable(), sessionTable()}

	t.Run("identical", func(t *testing.T) {
		got := []Table{userTable(), sessionTable()}
		got[0].Rows = 7
		assert.Empty(t, Diff(want, got))
	})

	t.Run("case-insensitive names and types", func(t *testing.T) {
		got := []Table{userTable(), sessionTable()}
		got[0].Name = "USER"
		got[1].Columns[1].Type = "integer"
		assert.Empty(t, Diff(want, got))
	})

	t.Run("missing table", func(t *testing.T) {
		assert.Equal(t, []string{"table session: missing"}, Diff(want, []Table{userTable()}))
	})

	t.Run("column drift", func(t *testing.T) {
		user := userTable()
		user.Columns[1].Unique = false
		user.Columns[2].NotNull = false
		user.Columns = append(user.Columns, Column{Name: "email", Type: "TEXT"})

		problems := Diff(want, []Table{user, sessionTable()})
		assert.ElementsMatch(t, []string{
			"table user: column username: unique false, want true",
			"table user: column password_hash: not null false, want true",
			"table user: column email: unexpected",
		}, problems)
	})

	t.Run("column type and key", func(t *testing.T) {
		session := sessionTable()
		session.Columns[0].PrimaryKey = false
		session.Columns[1].Type = "TEXT"
		session.Columns = session.Columns[:2]

		problems := Diff(want, []Table{userTable(), session})
		assert.ElementsMatch(t, []string{
			"table session: column id: primary key false, want true",
			`table session: column expires_at: type "TEXT", want "INTEGER"`,
			"table session: column user_id: missing",
		}, problems)
	})

	t.Run("foreign key drift", func(t *testing.T) {
		session := sessionTable()
		session.ForeignKeys = []ForeignKey{{Column: "user_id", RefTable: "account", RefColumn: "id"}}

		problems := Diff(want, []Table{userTable(), session})
		assert.ElementsMatch(t, []string{
			"table session: foreign key user_id -> user(id): missing",
			"table session: foreign key user_id -> account(id): unexpected",
		}, problems)
	})
}
