// Package testutil opens throwaway in-memory SQLite databases laid out like the
// production schema, so the SQL the adapter generates runs against a real engine.
package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"mission-control/internal/docstore/domain/model"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Schema mirrors the production tables. SQLite accepts the backtick-quoted identifiers
// and "?" placeholders the adapter emits.
const Schema = `
CREATE TABLE missions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'Planned',
	start_date DATETIME,
	end_date DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE satellites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	norad_id TEXT,
	status TEXT NOT NULL DEFAULT 'Active',
	orbit_type TEXT,
	altitude_km REAL,
	inclination_deg REAL,
	mission_id INTEGER,
	launch_date DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE ground_stations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	location TEXT,
	latitude REAL,
	longitude REAL,
	status TEXT NOT NULL DEFAULT 'Online',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name TEXT,
	role TEXT NOT NULL DEFAULT 'operator',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	satellite_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	command_type TEXT NOT NULL,
	parameters TEXT,
	status TEXT NOT NULL DEFAULT 'Pending',
	executed_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE anomalies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	satellite_id INTEGER NOT NULL,
	severity TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'Open',
	timestamp DATETIME NOT NULL,
	resolved_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE telemetry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	satellite_id INTEGER NOT NULL,
	parameter TEXT NOT NULL,
	value REAL NOT NULL,
	unit TEXT,
	timestamp DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSQLite returns an empty in-memory database with Schema applied. Every call gets
// a database of its own. The handle is limited to one connection, so concurrent callers
// queue on it the way they queue on an exhausted production pool.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

// Insert adds one row and returns its id.
func Insert(t testing.TB, db *sql.DB, table string, row model.Record) int64 {
	t.Helper()

	cols := make([]string, 0, len(row))
	marks := make([]string, 0, len(row))
	args := make([]interface{}, 0, len(row))
	for col, v := range row {
		cols = append(cols, "`"+col+"`")
		marks = append(marks, "?")
		args = append(args, v)
	}
	stmt := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := db.Exec(stmt, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SeedSatellites inserts three satellites (ids 1–3) deliberately out of name order.
func SeedSatellites(t testing.TB, db *sql.DB) {
	t.Helper()
	for _, name := range []string{"Sentinel-2B", "Aqua", "Landsat-9"} {
		Insert(t, db, "satellites", model.Record{"name": name, "status": "Active", "orbit_type": "LEO"})
	}
}

// SeedAnomalies inserts ten anomalies for satellites 1–3; exactly two are Open.
func SeedAnomalies(t testing.TB, db *sql.DB) {
	t.Helper()
	severities := []string{"Low", "Medium", "High", "Critical"}
	for i := 0; i < 10; i++ {
		status := "Resolved"
		if i == 2 || i == 7 {
			status = "Open"
		}
		Insert(t, db, "anomalies", model.Record{
			"satellite_id": int64(i%3 + 1),
			"severity":     severities[i%len(severities)],
			"description":  fmt.Sprintf("anomaly %d", i),
			"status":       status,
			"timestamp":    fmt.Sprintf("2025-03-%02d 08:00:00", i+1),
		})
	}
}
