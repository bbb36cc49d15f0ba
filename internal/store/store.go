package store

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotOpen is returned by store methods called before Open.
var ErrNotOpen = errors.New("database not opened")

// CheckExists verifies if the datastore file exists at dbPath.
// Returns true if the store exists, false otherwise.
func CheckExists(dbPath string) (bool, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("datastore path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// InitializationError reports a failed schema bootstrap.
// Op names the step that failed: OpCreateDir, OpOpen or OpCreateSchema.
type InitializationError struct {
	Path string
	Op   string
	Err  error
}

const (
	OpCreateDir    = "create directory"
	OpOpen         = "open database"
	OpCreateSchema = "create schema"
)

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}
