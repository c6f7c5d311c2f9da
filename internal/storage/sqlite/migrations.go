package sqlite

import "database/sql"

// schema sets up the snapshot table. Snapshots are append-only; Load
// reads the newest row and Save prunes old rows past the retention
// count, so the table doubles as a short recovery history.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
