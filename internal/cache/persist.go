package cache

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    root          TEXT PRIMARY KEY,
    data_path     TEXT NOT NULL,
    last_modified INTEGER NOT NULL,
    content       BLOB NOT NULL
);`

// SnapshotStore persists the raw text of each project's variables file
// between sessions. A snapshot whose recorded modification time still
// matches the file on disk lets a fresh process parse without touching
// the file.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode and initializes the schema.
func OpenSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

// Lookup returns the stored content for a project when its recorded
// modification time matches modTime.
func (ss *SnapshotStore) Lookup(root string, modTime time.Time) ([]byte, bool) {
	var stored int64
	var content []byte
	err := ss.db.QueryRow(
		`SELECT last_modified, content FROM snapshots WHERE root = ?`, root,
	).Scan(&stored, &content)
	if err != nil {
		return nil, false
	}
	if stored != modTime.Unix() {
		return nil, false
	}
	return content, true
}

// Save inserts or replaces the snapshot for a project.
func (ss *SnapshotStore) Save(root, dataPath string, modTime time.Time, content []byte) error {
	_, err := ss.db.Exec(`
        INSERT INTO snapshots (root, data_path, last_modified, content) VALUES (?, ?, ?, ?)
        ON CONFLICT(root) DO UPDATE SET
            data_path = excluded.data_path,
            last_modified = excluded.last_modified,
            content = excluded.content
    `, root, dataPath, modTime.Unix(), content)
	return err
}

// Delete removes a project's snapshot.
func (ss *SnapshotStore) Delete(root string) error {
	_, err := ss.db.Exec(`DELETE FROM snapshots WHERE root = ?`, root)
	return err
}

func (ss *SnapshotStore) Close() error {
	return ss.db.Close()
}
