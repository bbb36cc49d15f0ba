package store

import (
	"context"
	"fmt"
)

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing         StoreState = iota // File doesn't exist
	StateUninitialized                     // File exists but no schema tables
	StatePartial                           // Some schema tables are missing
	StateVersionMismatch                   // All tables exist but user_version differs
	StateReady                             // Initialized and correct version
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StatePartial:
		return "partial"
	case StateVersionMismatch:
		return "version_mismatch"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("StoreState(%d)", int(s))
}

// MarshalText lets a StoreState appear by name in JSON reports.
func (s StoreState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StoreState) UnmarshalText(text []byte) error {
	for state := StateMissing; state <= StateReady; state++ {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown store state %q", text)
}

// Store defines the gcsdb datastore contract.
type Store interface {
	// Open opens the datastore connection
	Open(ctx context.Context) error

	// Close closes the datastore connection
	Close() error

	// InitSchema creates the user, session and mission tables in one transaction
	InitSchema(ctx context.Context) error

	// CheckState returns the current state of the datastore
	CheckState(ctx context.Context) (StoreState, error)

	// SchemaVersion returns the schema version recorded in the database
	SchemaVersion(ctx context.Context) (int, error)

	// Describe introspects the schema tables that exist
	Describe(ctx context.Context) ([]Table, error)
}
