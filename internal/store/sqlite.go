// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists the sale ledger in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/hashicorp/go-version"
	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the database schema version for migrations
const SchemaVersion = 1

// SQLiteStore implements sale.Store on a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ sale.Store = (*SQLiteStore)(nil)

// Open creates or opens the ledger database at path. softwareVersion is
// recorded so a database written by a newer release can be detected.
func Open(ctx context.Context, path, softwareVersion string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.WrapConfigError("database path is required", nil)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapStorageError("failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, errors.WrapStorageError("failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(ctx, softwareVersion); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0o600); err != nil {
		logger.Logger.Warn("Failed to set database permissions", "error", err)
	}

	logger.Logger.Debug("Ledger database opened", "path", path, "schema_version", SchemaVersion)
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context, softwareVersion string) error {
	query := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sale_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sale_totals (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		contributed TEXT NOT NULL,
		allocated TEXT NOT NULL,
		claimed TEXT NOT NULL,
		participants INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allocations (
		participant TEXT PRIMARY KEY,
		contributed TEXT NOT NULL,
		allocated TEXT NOT NULL,
		claimed TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.WrapStorageError("failed to create schema", err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return errors.WrapStorageError("failed to read schema version", err)
	default:
		n, err := strconv.Atoi(stored)
		if err != nil {
			return errors.WrapStorageError("corrupt schema version", err)
		}
		if n > SchemaVersion {
			return errors.WrapStorageError("unsupported schema",
				fmt.Errorf("database schema %d is newer than supported %d", n, SchemaVersion))
		}
	}

	s.warnIfWrittenByNewer(ctx, softwareVersion)

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO meta (key, value) VALUES ('schema_version', ?), ('software_version', ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(SchemaVersion), softwareVersion)
	if err != nil {
		return errors.WrapStorageError("failed to write schema version", err)
	}
	return nil
}

// warnIfWrittenByNewer logs when this binary is older than the one that
// last opened the database.
func (s *SQLiteStore) warnIfWrittenByNewer(ctx context.Context, running string) {
	var last string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'software_version'`).Scan(&last); err != nil {
		return
	}

	lastV, err := version.NewVersion(last)
	if err != nil {
		return
	}
	runV, err := version.NewVersion(running)
	if err != nil {
		return
	}
	if lastV.GreaterThan(runV) {
		logger.Logger.Warn("Ledger database was last opened by a newer release", "database", lastV.String(), "running", runV.String())
	}
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) View(ctx context.Context, fn func(tx sale.ReadTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorageError("failed to begin read", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{ctx: ctx, tx: tx})
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(tx sale.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorageError("failed to begin transaction", err)
	}

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorageError("failed to commit", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) SaleConfig() (*sale.SaleConfig, error) {
	var raw string
	err := t.tx.QueryRowContext(t.ctx, `SELECT config_json FROM sale_config WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapStorageError("failed to load sale config", err)
	}

	var cfg sale.SaleConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, errors.WrapStorageError("failed to decode sale config", err)
	}
	return &cfg, nil
}

func (t *sqlTx) PutSaleConfig(cfg *sale.SaleConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return errors.WrapStorageError("failed to encode sale config", err)
	}

	// Written once; a second insert fails on the primary key.
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO sale_config (id, config_json, created_at) VALUES (1, ?, ?)`,
		string(data), formatTime(time.Now()),
	)
	if err != nil {
		return errors.WrapStorageError("failed to save sale config", err)
	}
	return nil
}

func (t *sqlTx) Allocation(participant string) (*sale.AllocationRecord, error) {
	var (
		rec                             sale.AllocationRecord
		contributed, allocated, claimed string
		createdAt, updatedAt            string
	)
	err := t.tx.QueryRowContext(t.ctx, `
	SELECT participant, contributed, allocated, claimed, created_at, updated_at
	FROM allocations
	WHERE participant = ?
	`, participant).Scan(&rec.Participant, &contributed, &allocated, &claimed, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapStorageError("failed to load allocation", err)
	}

	if rec.Contributed, err = parseAmount("contributed", contributed); err != nil {
		return nil, err
	}
	if rec.Allocated, err = parseAmount("allocated", allocated); err != nil {
		return nil, err
	}
	if rec.Claimed, err = parseAmount("claimed", claimed); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *sqlTx) PutAllocation(rec *sale.AllocationRecord) error {
	_, err := t.tx.ExecContext(t.ctx, `
	INSERT INTO allocations (participant, contributed, allocated, claimed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(participant) DO UPDATE SET
		contributed = excluded.contributed,
		allocated = excluded.allocated,
		claimed = excluded.claimed,
		updated_at = excluded.updated_at
	`,
		rec.Participant,
		rec.Contributed.String(), rec.Allocated.String(), rec.Claimed.String(),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return errors.WrapStorageError("failed to save allocation", err)
	}
	return nil
}

func (t *sqlTx) Totals() (*sale.SaleTotals, error) {
	var contributed, allocated, claimed string
	totals := sale.NewSaleTotals()

	err := t.tx.QueryRowContext(t.ctx,
		`SELECT contributed, allocated, claimed, participants FROM sale_totals WHERE id = 1`,
	).Scan(&contributed, &allocated, &claimed, &totals.Participants)
	if err == sql.ErrNoRows {
		return totals, nil
	}
	if err != nil {
		return nil, errors.WrapStorageError("failed to load totals", err)
	}

	if totals.Contributed, err = parseAmount("contributed", contributed); err != nil {
		return nil, err
	}
	if totals.Allocated, err = parseAmount("allocated", allocated); err != nil {
		return nil, err
	}
	if totals.Claimed, err = parseAmount("claimed", claimed); err != nil {
		return nil, err
	}
	return totals, nil
}

func (t *sqlTx) PutTotals(totals *sale.SaleTotals) error {
	_, err := t.tx.ExecContext(t.ctx, `
	INSERT INTO sale_totals (id, contributed, allocated, claimed, participants)
	VALUES (1, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		contributed = excluded.contributed,
		allocated = excluded.allocated,
		claimed = excluded.claimed,
		participants = excluded.participants
	`,
		totals.Contributed.String(), totals.Allocated.String(), totals.Claimed.String(), totals.Participants,
	)
	if err != nil {
		return errors.WrapStorageError("failed to save totals", err)
	}
	return nil
}

func (t *sqlTx) Participants() ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT participant FROM allocations ORDER BY participant ASC`)
	if err != nil {
		return nil, errors.WrapStorageError("failed to list participants", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.WrapStorageError("failed to scan participant", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageError("error iterating participants", err)
	}
	return out, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.WrapStorageError("corrupt "+field, fmt.Errorf("not an integer: %q", s))
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.WrapStorageError("failed to parse "+field, err)
	}
	return t, nil
}
