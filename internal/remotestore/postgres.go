package remotestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/logging"
	"github.com/alexkarev/homekeeper/internal/record"
	"github.com/alexkarev/homekeeper/internal/remotestore/pgmigrations"
)

// PostgresStore is a Client backed by PostgreSQL. Records live in one
// `records` table as jsonb payloads keyed by (zone, record_type, record_id)
// so one database serves many users.
type PostgresStore struct {
	db   *sql.DB
	dsn  string
	zone string
	log  logging.Logger
}

// NewPostgresStore opens a pgx connection and applies migrations.
func NewPostgresStore(ctx context.Context, dsn, zone string, log logging.Logger) (*PostgresStore, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &PostgresStore{db: db, dsn: dsn, zone: zone, log: log}
	if err := s.runMigrations(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(pgmigrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) EnsureZone(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO zones (zone) VALUES ($1) ON CONFLICT (zone) DO NOTHING`, s.zone)
	if err != nil {
		return fmt.Errorf("%w: ensuring zone %s: %v", common.ErrUnavailable, s.zone, err)
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, recordType string) error {
	// Best-effort cleanup: failures are logged, never surfaced.
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE zone = $1 AND record_type = $2`, s.zone, recordType)
	if err != nil {
		s.log.Warn(ctx, "delete all failed", "record_type", recordType, "error", err)
	}
	return nil
}

func (s *PostgresStore) SaveOne(ctx context.Context, rec *record.Record) error {
	payload, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding record %s/%s: %w", rec.Type, rec.ID, err)
	}

	query := `
		INSERT INTO records (zone, record_type, record_id, payload, modification_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (zone, record_type, record_id)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			modification_date = EXCLUDED.modification_date;
	`
	_, err = s.db.ExecContext(ctx, query,
		s.zone, rec.Type, rec.ID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving record %s/%s: %w", rec.Type, rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) SaveMany(ctx context.Context, recs []*record.Record) []SaveResult {
	results := make([]SaveResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, SaveResult{ID: rec.ID, Err: s.SaveOne(ctx, rec)})
	}
	return results
}

func (s *PostgresStore) Fetch(ctx context.Context, recordType string, opts FetchOptions) ([]FetchResult, error) {
	query := `
		SELECT record_id, payload, modification_date
		FROM records
		WHERE zone = $1 AND record_type = $2
	`
	rows, err := s.db.QueryContext(ctx, query, s.zone, recordType)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s records: %v", common.ErrUnavailable, recordType, err)
	}
	defer rows.Close()

	var results []FetchResult
	for rows.Next() {
		var (
			id      string
			payload []byte
			modDate time.Time
		)
		if err := rows.Scan(&id, &payload, &modDate); err != nil {
			results = append(results, FetchResult{ID: id, Err: err})
			continue
		}

		rec := &record.Record{}
		if err := rec.UnmarshalBinary(payload); err != nil {
			// One corrupt record must not abort the whole fetch.
			results = append(results, FetchResult{ID: id, Err: err})
			continue
		}
		rec.ModificationDate = modDate.UTC()

		if opts.Filter != nil && !opts.Filter(rec) {
			continue
		}
		results = append(results, FetchResult{ID: id, Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s records: %v", common.ErrUnavailable, recordType, err)
	}

	return sortAndLimit(results, opts), nil
}

// Reconnect re-opens the database connection after an account change.
func (s *PostgresStore) Reconnect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err == nil {
		return nil
	}
	_ = s.db.Close()

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: reconnecting: %v", common.ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: reconnecting: %v", common.ErrUnavailable, err)
	}
	s.db = db
	return nil
}
