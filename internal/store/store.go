// Package store persists the KNX device record in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/sweeney/knx-actuator/internal/knx"
)

const (
	dirPermissions    = 0750
	filePermissions   = 0600
	connectionTimeout = 5 * time.Second
	busyTimeoutMs     = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	serial     TEXT PRIMARY KEY,
	iid        INTEGER NOT NULL DEFAULT 0,
	ia         INTEGER NOT NULL,
	datapoints TEXT NOT NULL DEFAULT '{}',
	updated_at TEXT NOT NULL
)`

// Store is a knx.Store backed by a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	_ = os.Chmod(path, filePermissions)

	return &Store{db: db, now: time.Now}, nil
}

// LoadDevice returns the stored state for serial.
func (s *Store) LoadDevice(serial string) (knx.State, bool, error) {
	var (
		iid int64
		ia  int64
		dps string
	)
	err := s.db.QueryRow(
		`SELECT iid, ia, datapoints FROM devices WHERE serial = ?`, serial,
	).Scan(&iid, &ia, &dps)
	if errors.Is(err, sql.ErrNoRows) {
		return knx.State{}, false, nil
	}
	if err != nil {
		return knx.State{}, false, fmt.Errorf("querying device: %w", err)
	}

	st := knx.State{
		Serial: serial,
		IID:    uint64(iid),
		IA:     knx.IndividualAddress(ia),
	}
	if err := json.Unmarshal([]byte(dps), &st.Datapoints); err != nil {
		return knx.State{}, false, fmt.Errorf("decoding datapoints: %w", err)
	}
	return st, true, nil
}

// SaveDevice inserts or replaces the state for st.Serial.
func (s *Store) SaveDevice(st knx.State) error {
	dps := st.Datapoints
	if dps == nil {
		dps = map[string]bool{}
	}
	data, err := json.Marshal(dps)
	if err != nil {
		return fmt.Errorf("encoding datapoints: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO devices (serial, iid, ia, datapoints, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			iid = excluded.iid,
			ia = excluded.ia,
			datapoints = excluded.datapoints,
			updated_at = excluded.updated_at`,
		st.Serial, int64(st.IID), int64(st.IA), string(data), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
