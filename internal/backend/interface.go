// Package backend builds the data source selected in configuration.
package backend

import (
	"context"

	"pfinance/internal/sources"
)

// Backend is everything the HTTP layer needs from a data source.
type Backend interface {
	sources.TransactionWriter
	sources.TaxonomyReader
	sources.ChartSource
}

// Pinger is implemented by backends that can report their readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	// Accounts is nil when the backend does not manage accounts.
	Accounts sources.AccountWriter
	Cleanup  CleanupFunc
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleLedgerSheet     string
	GoogleDashboardPrefix string
	GoogleAccountsSheet   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Categories file used by the memory backend and to seed sqlite.
	SeedCategoriesFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
