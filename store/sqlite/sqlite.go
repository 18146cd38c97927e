/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Persists the population (individuals and their monthly inputs), the
  legislation documents and the contribution runs. In production the same
  patterns apply to PostgreSQL with minor SQL dialect differences.

KEY TABLES:
  individuals:  Entity records, constant inputs as JSON
  inputs:       Monthly input values, one row per (entity, variable, month)
  legislation:  Legislation documents keyed by valid_from
  runs:         Computed runs (append-only)
  run_lines:    One value per individual per run

APPEND-ONLY RUNS:
  - No UPDATE statements on runs or run_lines
  - No DELETE statements on runs or run_lines
  - A recomputation is a new run

INPUT OVERRIDES:
  inputs uses INSERT OR REPLACE on its primary key. A second write for the
  same entity, variable and month is a correction of the source data.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/contributions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  population, err := generic.LoadPopulation(ctx, store, registry, period)

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/generic"
)

// Store implements generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS individuals (
		id TEXT PRIMARY KEY,
		name TEXT,
		constants_json TEXT NOT NULL DEFAULT '{}'
	);

	-- Monthly inputs, one value per key
	CREATE TABLE IF NOT EXISTS inputs (
		entity_id TEXT NOT NULL REFERENCES individuals(id),
		variable TEXT NOT NULL,
		month_start TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (entity_id, variable, month_start)
	);

	CREATE INDEX IF NOT EXISTS idx_inputs_month
		ON inputs(month_start);

	CREATE TABLE IF NOT EXISTS legislation (
		valid_from TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		body BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Runs (append-only)
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		variable TEXT NOT NULL,
		period TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_variable_period
		ON runs(variable, period);

	CREATE TABLE IF NOT EXISTS run_lines (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		entity_id TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INDIVIDUALS
// =============================================================================

func (s *Store) SaveIndividual(ctx context.Context, ind generic.Individual) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	constants, err := encodeConstants(ind.Constants)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO individuals (id, name, constants_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, constants_json = excluded.constants_json
	`, string(ind.ID), nullString(ind.Name), constants)
	if err != nil {
		return fmt.Errorf("failed to save individual: %w", err)
	}
	return nil
}

func (s *Store) Individual(ctx context.Context, id generic.EntityID) (generic.Individual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, name, constants_json FROM individuals WHERE id = ?`, string(id))
	ind, err := scanIndividual(row)
	if err == sql.ErrNoRows {
		return generic.Individual{}, generic.ErrIndividualNotFound
	}
	return ind, err
}

func (s *Store) Individuals(ctx context.Context) ([]generic.Individual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, constants_json FROM individuals ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.Individual
	for rows.Next() {
		ind, err := scanIndividual(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ind)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndividual(row rowScanner) (generic.Individual, error) {
	var (
		id        string
		name      sql.NullString
		constants string
	)
	if err := row.Scan(&id, &name, &constants); err != nil {
		return generic.Individual{}, err
	}
	decoded, err := decodeConstants(constants)
	if err != nil {
		return generic.Individual{}, fmt.Errorf("individual %s: %w", id, err)
	}
	return generic.Individual{ID: generic.EntityID(id), Name: name.String, Constants: decoded}, nil
}

func encodeConstants(constants map[string]decimal.Decimal) (string, error) {
	if len(constants) == 0 {
		return "{}", nil
	}
	raw := make(map[string]string, len(constants))
	for k, v := range constants {
		raw[k] = v.String()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode constants: %w", err)
	}
	return string(data), nil
}

func decodeConstants(data string) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode constants: %w", err)
	}
	constants := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", k, err)
		}
		constants[k] = d
	}
	return constants, nil
}

// =============================================================================
// INPUTS
// =============================================================================

// PutInputs writes all records in one transaction. An unknown individual
// rolls the whole batch back.
func (s *Store) PutInputs(ctx context.Context, records []generic.InputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range records {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM individuals WHERE id = ?`, string(rec.EntityID)).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", generic.ErrIndividualNotFound, rec.EntityID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO inputs (entity_id, variable, month_start, value)
			VALUES (?, ?, ?, ?)
		`, string(rec.EntityID), rec.Variable, rec.Month.ThisMonth().Start.String(), rec.Value.String())
		if err != nil {
			return fmt.Errorf("failed to write input %s/%s: %w", rec.EntityID, rec.Variable, err)
		}
	}

	return tx.Commit()
}

func (s *Store) InputsInRange(ctx context.Context, from, to generic.TimePoint) ([]generic.InputRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Dates are stored as YYYY-MM-DD so text order is date order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, variable, month_start, value FROM inputs
		WHERE month_start >= ? AND month_start <= ?
		ORDER BY month_start, entity_id, variable
	`, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.InputRecord
	for rows.Next() {
		var entityID, variable, monthStart, value string
		if err := rows.Scan(&entityID, &variable, &monthStart, &value); err != nil {
			return nil, err
		}
		start, err := generic.ParseTimePoint(monthStart)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(value)
		if err != nil {
			return nil, fmt.Errorf("input %s/%s %s: %w", entityID, variable, monthStart, err)
		}
		result = append(result, generic.InputRecord{
			EntityID: generic.EntityID(entityID),
			Variable: variable,
			Month:    generic.Month(start.Year(), start.Month()),
			Value:    amount,
		})
	}
	return result, rows.Err()
}

// =============================================================================
// LEGISLATION
// =============================================================================

func (s *Store) SaveLegislation(ctx context.Context, doc generic.LegislationDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO legislation (valid_from, format, body, created_at)
		VALUES (?, ?, ?, ?)
	`, doc.ValidFrom.String(), doc.Format, doc.Body, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save legislation: %w", err)
	}
	return nil
}

func (s *Store) LegislationDocuments(ctx context.Context) ([]generic.LegislationDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT valid_from, format, body, created_at FROM legislation ORDER BY valid_from
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.LegislationDocument
	for rows.Next() {
		var validFrom, format, createdAt string
		var body []byte
		if err := rows.Scan(&validFrom, &format, &body, &createdAt); err != nil {
			return nil, err
		}
		tp, err := generic.ParseTimePoint(validFrom)
		if err != nil {
			return nil, err
		}
		created, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("legislation %s created_at: %w", validFrom, err)
		}
		result = append(result, generic.LegislationDocument{
			ValidFrom: tp,
			Format:    format,
			Body:      body,
			CreatedAt: created,
		})
	}
	return result, rows.Err()
}

// =============================================================================
// RUNS
// =============================================================================

// AppendRun persists the run and its lines atomically.
func (s *Store) AppendRun(ctx context.Context, run generic.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, variable, period, created_at) VALUES (?, ?, ?, ?)
	`, run.ID, run.Variable, run.Period.String(), createdAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateRun
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, line := range run.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_lines (run_id, position, entity_id, value) VALUES (?, ?, ?, ?)
		`, run.ID, i, string(line.EntityID), line.Value.String())
		if err != nil {
			return fmt.Errorf("failed to insert run line: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) Run(ctx context.Context, id string) (generic.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadRun(ctx, id)
}

// LatestRun returns the most recent run of a variable for a period.
func (s *Store) LatestRun(ctx context.Context, variable string, period generic.Period) (generic.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs WHERE variable = ? AND period = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, variable, period.String()).Scan(&id)
	if err == sql.ErrNoRows {
		return generic.Run{}, fmt.Errorf("%w: %s for %s", generic.ErrRunNotFound, variable, period)
	}
	if err != nil {
		return generic.Run{}, err
	}
	return s.loadRun(ctx, id)
}

func (s *Store) loadRun(ctx context.Context, id string) (generic.Run, error) {
	var variable, period, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT variable, period, created_at FROM runs WHERE id = ?
	`, id).Scan(&variable, &period, &createdAt)
	if err == sql.ErrNoRows {
		return generic.Run{}, generic.ErrRunNotFound
	}
	if err != nil {
		return generic.Run{}, err
	}

	p, err := generic.ParsePeriod(period)
	if err != nil {
		return generic.Run{}, err
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return generic.Run{}, fmt.Errorf("run %s created_at: %w", id, err)
	}
	run := generic.Run{ID: id, Variable: variable, Period: p, CreatedAt: created}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, value FROM run_lines WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return generic.Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var entityID, value string
		if err := rows.Scan(&entityID, &value); err != nil {
			return generic.Run{}, err
		}
		amount, err := parseAmount(value)
		if err != nil {
			return generic.Run{}, fmt.Errorf("run %s line %s: %w", id, entityID, err)
		}
		run.Lines = append(run.Lines, generic.RunLine{
			EntityID: generic.EntityID(entityID),
			Value:    amount,
		})
	}
	return run, rows.Err()
}

// =============================================================================
// RESET
// =============================================================================

// Reset removes the population, its inputs and the legislation. Runs are
// kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"inputs", "individuals", "legislation"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// parseAmount decodes a stored decimal. Corrupt values are errors, never zero.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("stored amount %q: %w", s, err)
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
