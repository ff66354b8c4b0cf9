package sqlite

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the sqlite database at path and initializes the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_runs (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			phone_number TEXT,
			current_state TEXT NOT NULL,
			context BLOB,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_session ON flow_runs(session_id);
		CREATE TABLE IF NOT EXISTS flow_definitions (
			id TEXT PRIMARY KEY,
			definition BLOB NOT NULL
		);`,
	)
	return err
}
