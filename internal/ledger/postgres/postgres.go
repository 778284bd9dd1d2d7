// Package postgres implements the progress ledger on PostgreSQL.
//
// The schema mirrors the collection-progress table the system has always
// used: one row per (ticker, exchange, year, month) carrying collection
// progress and upload state, plus a monitored_assets table driving the
// active-only filter.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/tickvault/internal/config"
	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/ledger"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/monthly"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS data_collection_progress (
    ticker                TEXT    NOT NULL,
    exchange              TEXT    NOT NULL,
    year                  INT     NOT NULL,
    month                 INT     NOT NULL,
    last_collected_ms     BIGINT  NOT NULL DEFAULT 0,
    record_count          INT     NOT NULL DEFAULT 0,
    file_size_bytes       BIGINT  NOT NULL DEFAULT 0,
    local_path            TEXT    NOT NULL DEFAULT '',
    remote_key            TEXT    NOT NULL DEFAULT '',
    upload_status         TEXT    NOT NULL DEFAULT 'not_uploaded',
    uploaded_size_bytes   BIGINT  NOT NULL DEFAULT 0,
    uploaded_record_count INT     NOT NULL DEFAULT 0,
    attempts              INT     NOT NULL DEFAULT 0,
    last_error            TEXT    NOT NULL DEFAULT '',
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (ticker, exchange, year, month)
);

CREATE TABLE IF NOT EXISTS monitored_assets (
    ticker     TEXT NOT NULL,
    exchange   TEXT NOT NULL,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (ticker, exchange)
);
`

// Store is a PostgreSQL-backed ledger.
type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Ledger = (*Store)(nil)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.LedgerConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// Open creates a connection pool and ensures the schema exists.
func Open(ctx context.Context, cfg config.LedgerConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SyncAssets upserts the monitored asset list and deactivates assets no
// longer present in it.
func (s *Store) SyncAssets(ctx context.Context, assets []config.AssetConfig) error {
	batch := &pgx.Batch{}
	batch.Queue(`UPDATE monitored_assets SET is_active = FALSE`)
	for _, a := range assets {
		batch.Queue(`
			INSERT INTO monitored_assets (ticker, exchange, is_active)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (ticker, exchange) DO UPDATE SET is_active = TRUE`,
			a.Ticker, a.Exchange)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
		}
	}
	return nil
}

// PendingOrFailed implements ledger.Ledger.
func (s *Store) PendingOrFailed(ctx context.Context, activeOnly bool) ([]market.MonthKey, error) {
	q := `
		SELECT p.ticker, p.exchange, p.year, p.month
		FROM data_collection_progress p`
	if activeOnly {
		q += `
		JOIN monitored_assets a
		  ON a.ticker = p.ticker AND a.exchange = p.exchange AND a.is_active`
	}
	q += `
		WHERE p.upload_status IN ('not_uploaded', 'failed')
		   OR p.file_size_bytes <> p.uploaded_size_bytes
		   OR p.record_count <> p.uploaded_record_count
		ORDER BY p.ticker, p.exchange, p.year, p.month`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}
	defer rows.Close()

	var keys []market.MonthKey
	for rows.Next() {
		var k market.MonthKey
		var month int
		if err := rows.Scan(&k.Ticker, &k.Exchange, &k.Year, &month); err != nil {
			return nil, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
		}
		k.Month = time.Month(month)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}

	return keys, nil
}

// State implements ledger.Ledger.
func (s *Store) State(ctx context.Context, key market.MonthKey) (ledger.UploadState, error) {
	e, err := s.Entry(ctx, key)
	if err != nil {
		return ledger.UploadState{}, err
	}
	return e.Upload, nil
}

// Entry implements ledger.Ledger.
func (s *Store) Entry(ctx context.Context, key market.MonthKey) (ledger.Entry, error) {
	var (
		e      ledger.Entry
		status string
	)
	e.Key = key

	err := s.pool.QueryRow(ctx, `
		SELECT last_collected_ms, record_count, file_size_bytes,
		       local_path, remote_key,
		       upload_status, uploaded_size_bytes, uploaded_record_count,
		       attempts, last_error, updated_at
		FROM data_collection_progress
		WHERE ticker = $1 AND exchange = $2 AND year = $3 AND month = $4`,
		key.Ticker, key.Exchange, key.Year, int(key.Month),
	).Scan(
		&e.LastCollectedMs, &e.Current.RecordCount, &e.Current.SizeBytes,
		&e.LocalPath, &e.RemoteKey,
		&status, &e.Upload.Uploaded.SizeBytes, &e.Upload.Uploaded.RecordCount,
		&e.Upload.Attempts, &e.Upload.LastError, &e.Upload.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return ledger.Entry{}, errors.Wrapf(errors.ErrEntryNotFound, "%s", key)
	}
	if err != nil {
		return ledger.Entry{}, errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}

	e.Upload.Status, err = ledger.ParseStatus(status)
	if err != nil {
		return ledger.Entry{}, err
	}

	return e, nil
}

// UpsertState implements ledger.Ledger.
func (s *Store) UpsertState(ctx context.Context, key market.MonthKey, state ledger.UploadState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_collection_progress
		    (ticker, exchange, year, month,
		     upload_status, uploaded_size_bytes, uploaded_record_count,
		     attempts, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (ticker, exchange, year, month) DO UPDATE SET
		    upload_status         = EXCLUDED.upload_status,
		    uploaded_size_bytes   = EXCLUDED.uploaded_size_bytes,
		    uploaded_record_count = EXCLUDED.uploaded_record_count,
		    attempts              = EXCLUDED.attempts,
		    last_error            = EXCLUDED.last_error,
		    updated_at            = now()`,
		key.Ticker, key.Exchange, key.Year, int(key.Month),
		state.Status.String(), state.Uploaded.SizeBytes, state.Uploaded.RecordCount,
		state.Attempts, state.LastError,
	)
	if err != nil {
		return errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}
	return nil
}

// RecordWrite implements ledger.Ledger.
func (s *Store) RecordWrite(ctx context.Context, key market.MonthKey, result monthly.WriteResult, remoteKey string) error {
	// A changed file moves an uploaded partition back to not_uploaded so the
	// next batch run picks it up again.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_collection_progress
		    (ticker, exchange, year, month,
		     last_collected_ms, record_count, file_size_bytes,
		     local_path, remote_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (ticker, exchange, year, month) DO UPDATE SET
		    last_collected_ms = GREATEST(data_collection_progress.last_collected_ms, EXCLUDED.last_collected_ms),
		    record_count      = EXCLUDED.record_count,
		    file_size_bytes   = EXCLUDED.file_size_bytes,
		    local_path        = EXCLUDED.local_path,
		    remote_key        = EXCLUDED.remote_key,
		    upload_status     = CASE
		        WHEN $10 AND data_collection_progress.upload_status = 'uploaded'
		        THEN 'not_uploaded'
		        ELSE data_collection_progress.upload_status
		    END,
		    updated_at        = now()`,
		key.Ticker, key.Exchange, key.Year, int(key.Month),
		result.LastTimestampMs, result.TotalRecords, result.FileSize,
		result.Path, remoteKey, result.FileChanged,
	)
	if err != nil {
		return errors.Wrap(errors.ErrLedgerUnavailable, err.Error())
	}
	return nil
}
