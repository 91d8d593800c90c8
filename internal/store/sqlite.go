package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/validate"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	service_date   TEXT NOT NULL,
	price          REAL NOT NULL CHECK (price >= 0),
	service_type   TEXT NOT NULL DEFAULT '',
	lead_source    TEXT NOT NULL DEFAULT '',
	street         TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip            TEXT NOT NULL DEFAULT '',
	full_address   TEXT NOT NULL DEFAULT '',
	lat            REAL,
	lng            REAL,
	needs_geocode  INTEGER NOT NULL DEFAULT 1,
	geocode_status TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_dedupe ON jobs(name, service_date, price, street, zip);
CREATE INDEX IF NOT EXISTS idx_jobs_service_date ON jobs(service_date);
CREATE INDEX IF NOT EXISTS idx_jobs_zip ON jobs(zip);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Select(ctx context.Context, f Filter) ([]model.Job, error) {
	query := `SELECT ` + selectColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if !f.Start.IsZero() {
		query += ` AND service_date >= ?`
		args = append(args, f.Start.Format(validate.DateLayout))
	}
	if !f.End.IsZero() {
		query += ` AND service_date <= ?`
		args = append(args, f.End.Format(validate.DateLayout))
	}
	if f.MinPrice > 0 {
		query += ` AND price >= ?`
		args = append(args, f.MinPrice)
	}
	query += ` ORDER BY service_date, created_at, id`

	return s.queryJobs(ctx, query, args...)
}

func (s *SQLiteStore) Upsert(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (`+strings.Join(jobColumns, ", ")+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (`+strings.Join(ConflictKey, ", ")+`) DO NOTHING`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var inserted []model.Job
	for _, j := range jobs {
		j.ID = uuid.New().String()
		j.CreatedAt = now
		if j.GeocodeStatus == "" {
			j.GeocodeStatus = model.GeocodePending
		}
		res, err := stmt.ExecContext(ctx,
			j.ID, j.Name, j.ServiceDate, j.Price, j.ServiceType, j.LeadSource,
			j.Street, j.City, j.State, j.Zip, j.FullAddress,
			nullFloat(j.Lat), nullFloat(j.Lng), j.NeedsGeocode, string(j.GeocodeStatus), now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert job %q", j.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 1 {
			inserted = append(inserted, j)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return inserted, nil
}

func (s *SQLiteStore) PendingGeocode(ctx context.Context, limit int) ([]model.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+selectColumns+` FROM jobs WHERE `+pendingClause+` ORDER BY created_at, id LIMIT ?`,
		limit,
	)
}

func (s *SQLiteStore) CountPendingGeocode(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE `+pendingClause).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count pending geocode")
}

func (s *SQLiteStore) UpdateGeocode(ctx context.Context, id string, u GeocodeUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET lat = ?, lng = ?, zip = COALESCE(NULLIF(?, ''), zip),
			geocode_status = ?, needs_geocode = 0
		WHERE id = ?`,
		nullFloat(u.Lat), nullFloat(u.Lng), u.Zip, string(u.Status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update geocode %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) RequeueNoMatch(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET needs_geocode = 1, geocode_status = 'pending' WHERE geocode_status = 'no_match'`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: requeue no_match")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row scannable) (model.Job, error) {
	var (
		j        model.Job
		lat, lng sql.NullFloat64
		status   string
	)
	err := row.Scan(
		&j.ID, &j.Name, &j.ServiceDate, &j.Price, &j.ServiceType, &j.LeadSource,
		&j.Street, &j.City, &j.State, &j.Zip, &j.FullAddress,
		&lat, &lng, &j.NeedsGeocode, &status, &j.CreatedAt,
	)
	if err != nil {
		return j, eris.Wrap(err, "sqlite: scan job")
	}
	if lat.Valid {
		j.Lat = &lat.Float64
	}
	if lng.Valid {
		j.Lng = &lng.Float64
	}
	j.GeocodeStatus = model.GeocodeStatus(status)
	return j, nil
}
