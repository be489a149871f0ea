package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection used as the persistent thumbnail cache
type DB struct {
	*sql.DB
}

// InitDB opens (or creates) the cache database at dbPath
func InitDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	// WAL lets listing requests read thumbnails while one is being written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		cache_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_thumbnails_created ON thumbnails(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// LoadThumbnail returns the cached thumbnail for key. ok is false on a miss.
func (db *DB) LoadThumbnail(key string) (data []byte, ok bool, err error) {
	err = db.QueryRow(`SELECT data FROM thumbnails WHERE cache_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SaveThumbnail stores data under key, replacing any previous entry
func (db *DB) SaveThumbnail(key string, data []byte) error {
	query := `INSERT OR REPLACE INTO thumbnails (cache_key, data, created_at) VALUES (?, ?, ?)`
	_, err := db.Exec(query, key, data, time.Now().UTC())
	return err
}

// PruneThumbnails deletes entries created before cutoff and reports how many were removed
func (db *DB) PruneThumbnails(cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM thumbnails WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountThumbnails returns the number of cached thumbnails
func (db *DB) CountThumbnails() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM thumbnails`).Scan(&n)
	return n, err
}
