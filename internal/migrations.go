package internal

import (
	"database/sql"
	"fmt"
)

// projectMigrations is the ordered, append-only list of schema migrations.
// Each entry is applied exactly once, tracked by its 1-based position in
// the migrations table. Never reorder or edit released entries.
var projectMigrations = []string{
	// Migration 1: initial setup.
	`create table sessions (
	    session_id integer primary key not null,
	    source_type integer not null,
	    source_param text,
	    protocol text not null,
	    process_id integer not null,
	    opened_at real not null,
	    closed_at real,
	    thumbnail blob);
	create table messages (
	    session_id integer not null,
	    sequence_id integer not null,
	    recorded_at real not null,
	    type integer not null,
	    context_id integer not null,
	    body blob,
	    primary key (session_id, sequence_id)) without rowid;
	create table snapshots (
	    snapshot_id integer primary key not null,
	    session_id integer not null,
	    taken_at real not null);
	create table snapshot_messages (
	    snapshot_id integer not null,
	    sequence_id integer not null,
	    type integer not null,
	    context_id integer not null,
	    body blob,
	    primary key (snapshot_id, sequence_id)) without rowid`,
}

// applyMigrations runs all pending migrations inside the caller's
// transaction. Rolling that transaction back undoes everything, including
// the bookkeeping rows.
func applyMigrations(tx *sql.Tx) error {
	_, err := tx.Exec(`create table if not exists migrations (
	    migration_id integer primary key not null)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	stmt, err := tx.Prepare("insert or ignore into migrations (migration_id) values (?)")
	if err != nil {
		return fmt.Errorf("preparing migration insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, migration := range projectMigrations {
		migrationID := i + 1
		res, err := stmt.Exec(migrationID)
		if err != nil {
			return fmt.Errorf("inserting migration %d: %w", migrationID, err)
		}
		changes, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("inserting migration %d: %w", migrationID, err)
		}
		if changes > 0 {
			LogDebug("Executing migration %d", migrationID)
			if _, err := tx.Exec(migration); err != nil {
				return fmt.Errorf("executing migration %d: %w", migrationID, err)
			}
		}
	}
	return nil
}
