package testing

import (
	"database/sql"
	"testing"

	"github.com/teranos/yanantin/db"
)

// CreateTestDB creates an in-memory SQLite database with every record table
// migrated. Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(db.MemoryPath, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
