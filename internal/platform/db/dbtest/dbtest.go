// Package dbtest provides an in-memory SQLite store for repository tests.
package dbtest

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ehr/alerting/internal/platform/db"
)

// NewSQLite opens a fresh in-memory database with the full schema applied.
func NewSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
