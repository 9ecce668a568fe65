// Package persistence provides SQLite storage for run summaries and uptake history.
package persistence

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/rootshare/telemetry"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Run is one stored simulation run.
type Run struct {
	ID             string `db:"id"`
	StartedAt      string `db:"started_at"` // RFC 3339
	Seed           int64  `db:"seed"`
	Method         string `db:"method"`
	NitrogenMethod int    `db:"nitrogen_method"`
	Config         string `db:"config_yaml"`
	Days           int    `db:"days"`
}

// PlantTotal is a plant's summed uptake of one resource over a run.
type PlantTotal struct {
	Plant int     `db:"plant"`
	Name  string  `db:"plant_name"`
	Total float64 `db:"total"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		method TEXT NOT NULL,
		nitrogen_method INTEGER NOT NULL,
		config_yaml TEXT NOT NULL,
		days INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS day_summaries (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		resource TEXT NOT NULL,
		plants INTEGER NOT NULL,
		compartments INTEGER NOT NULL,
		demand REAL NOT NULL,
		extractable REAL NOT NULL,
		uptake REAL NOT NULL,
		nitrate REAL NOT NULL,
		available REAL NOT NULL,
		residual REAL NOT NULL,
		satisfaction REAL NOT NULL,
		scarcity_mean REAL NOT NULL,
		scarcity_min REAL NOT NULL,
		scarcity_p10 REAL NOT NULL,
		limited INTEGER NOT NULL,
		PRIMARY KEY (run_id, day, resource)
	);

	CREATE TABLE IF NOT EXISTS uptake (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		resource TEXT NOT NULL,
		plant INTEGER NOT NULL,
		plant_name TEXT NOT NULL,
		zone INTEGER NOT NULL,
		layer INTEGER NOT NULL,
		amount REAL NOT NULL,
		nitrate_fraction REAL NOT NULL,
		supply_nitrate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uptake_run ON uptake(run_id, resource, plant);
	CREATE INDEX IF NOT EXISTS idx_bookmarks_run ON bookmarks(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun records the start of a run.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(id, started_at, seed, method, nitrogen_method, config_yaml, days)
		VALUES (:id, :started_at, :seed, :method, :nitrogen_method, :config_yaml, :days)`, r)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the number of days a run completed.
func (db *DB) FinishRun(runID string, days int) error {
	_, err := db.conn.Exec("UPDATE runs SET days = ? WHERE id = ?", days, runID)
	return err
}

// SaveDay writes one arbitration call's summary and uptake rows in a single transaction.
func (db *DB) SaveDay(runID string, s telemetry.DaySummary, records []telemetry.UptakeRecord) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO day_summaries
		(run_id, day, resource, plants, compartments, demand, extractable, uptake, nitrate,
		 available, residual, satisfaction, scarcity_mean, scarcity_min, scarcity_p10, limited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Day, s.Resource, s.Plants, s.Compartments, s.Demand, s.Extractable, s.Uptake, s.Nitrate,
		s.Available, s.Residual, s.Satisfaction, s.ScarcityMean, s.ScarcityMin, s.ScarcityP10, s.Limited)
	if err != nil {
		return fmt.Errorf("save day %d %s: %w", s.Day, s.Resource, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO uptake
		(run_id, day, resource, plant, plant_name, zone, layer, amount, nitrate_fraction, supply_nitrate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.Day, r.Resource, r.Plant, r.PlantName, r.Zone, r.Layer,
			r.Amount, r.NitrateFraction, r.SupplyNitrate); err != nil {
			return fmt.Errorf("save uptake: %w", err)
		}
	}
	return tx.Commit()
}

// SaveBookmark stores a bookmark for a run.
func (db *DB) SaveBookmark(runID string, b telemetry.Bookmark) error {
	_, err := db.conn.Exec("INSERT INTO bookmarks (run_id, day, type, description) VALUES (?, ?, ?, ?)",
		runID, b.Day, string(b.Type), b.Description)
	return err
}

// GetRun loads a run by ID.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	return r, err
}

// DaySummaries returns a run's summaries for one resource, ordered by day.
func (db *DB) DaySummaries(runID, resource string) ([]telemetry.DaySummary, error) {
	var out []telemetry.DaySummary
	err := db.conn.Select(&out, `SELECT day, resource, plants, compartments, demand, extractable,
		uptake, nitrate, available, residual, satisfaction, scarcity_mean, scarcity_min,
		scarcity_p10, limited
		FROM day_summaries WHERE run_id = ? AND resource = ? ORDER BY day`, runID, resource)
	return out, err
}

// PlantTotals sums each plant's uptake of a resource over a run.
func (db *DB) PlantTotals(runID, resource string) ([]PlantTotal, error) {
	var out []PlantTotal
	err := db.conn.Select(&out, `SELECT plant, plant_name, SUM(amount) AS total
		FROM uptake WHERE run_id = ? AND resource = ?
		GROUP BY plant, plant_name ORDER BY plant`, runID, resource)
	return out, err
}

// Bookmarks returns a run's bookmarks in insertion order.
func (db *DB) Bookmarks(runID string) ([]telemetry.Bookmark, error) {
	rows, err := db.conn.Queryx("SELECT day, type, description FROM bookmarks WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.Bookmark
	for rows.Next() {
		var b telemetry.Bookmark
		var typ string
		if err := rows.Scan(&b.Day, &typ, &b.Description); err != nil {
			return nil, err
		}
		b.Type = telemetry.BookmarkType(typ)
		out = append(out, b)
	}
	return out, rows.Err()
}
