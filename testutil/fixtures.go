package testutil

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// WriteRawFile writes arbitrary bytes to a file for header check tests
func WriteRawFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

// CreateSQLiteFixture creates a plain SQLite database with the given header
// pragmas. Useful for producing files that are valid databases but not
// valid project files.
func CreateSQLiteFixture(t *testing.T, dbPath string, applicationID, userVersion int32) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Pragmas only persist once a page is written, so create a real table.
	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
		"CREATE TABLE IF NOT EXISTS fixture (id INTEGER PRIMARY KEY)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

// SQLiteHeaderField reads a big-endian int32 header field at the given
// byte offset of a database file.
func SQLiteHeaderField(t *testing.T, path string, offset int64) int32 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	var buf [4]byte
	if _, err := f.ReadAt(buf[:], offset); err != nil {
		t.Fatalf("Failed to read header field at %d: %v", offset, err)
	}
	return int32(binary.BigEndian.Uint32(buf[:]))
}
