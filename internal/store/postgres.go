package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/db"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/validate"
	"github.com/sells-group/jobmap/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	newID   func() string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, newID: uuid.NewString}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the geocode cache).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name           TEXT NOT NULL,
	service_date   DATE NOT NULL,
	price          DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	service_type   TEXT NOT NULL DEFAULT '',
	lead_source    TEXT NOT NULL DEFAULT '',
	street         TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip            TEXT NOT NULL DEFAULT '',
	full_address   TEXT NOT NULL DEFAULT '',
	lat            DOUBLE PRECISION,
	lng            DOUBLE PRECISION,
	needs_geocode  BOOLEAN NOT NULL DEFAULT TRUE,
	geocode_status TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_dedupe ON jobs(name, service_date, price, street, zip);
CREATE INDEX IF NOT EXISTS idx_jobs_service_date ON jobs(service_date);
CREATE INDEX IF NOT EXISTS idx_jobs_zip ON jobs(zip);
CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs(created_at) WHERE needs_geocode;

`

// jobColumns is the insert column list, in copy-row order.
var jobColumns = []string{
	"id", "name", "service_date", "price", "service_type", "lead_source",
	"street", "city", "state", "zip", "full_address",
	"lat", "lng", "needs_geocode", "geocode_status",
}

const selectColumns = `id, name, service_date, price, service_type, lead_source, ` +
	`street, city, state, zip, full_address, lat, lng, needs_geocode, geocode_status, created_at`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the jobs and geocode cache tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration+geocode.CacheSchema)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Select(ctx context.Context, f Filter) ([]model.Job, error) {
	var (
		where []string
		args  []any
	)
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		where = append(where, fmt.Sprintf("service_date >= $%d", len(args)))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		where = append(where, fmt.Sprintf("service_date <= $%d", len(args)))
	}
	if f.MinPrice > 0 {
		args = append(args, f.MinPrice)
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}

	query := `SELECT ` + selectColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY service_date, created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: select jobs")
	}
	jobs, err := pgx.CollectRows(rows, scanPostgresJob)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan jobs")
	}
	return jobs, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	byID := make(map[string]model.Job, len(jobs))
	rows := make([][]any, 0, len(jobs))
	for _, j := range jobs {
		date, err := time.Parse(validate.DateLayout, j.ServiceDate)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: upsert: service date %q", j.ServiceDate)
		}
		j.ID = s.newID()
		if j.GeocodeStatus == "" {
			j.GeocodeStatus = model.GeocodePending
		}
		byID[j.ID] = j
		rows = append(rows, []any{
			j.ID, j.Name, date, j.Price, j.ServiceType, j.LeadSource,
			j.Street, j.City, j.State, j.Zip, j.FullAddress,
			j.Lat, j.Lng, j.NeedsGeocode, string(j.GeocodeStatus),
		})
	}

	ids, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:        "jobs",
		Columns:      jobColumns,
		ConflictKeys: ConflictKey,
		Returning:    "id",
	}, rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert jobs")
	}

	inserted := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			inserted = append(inserted, j)
		}
	}

	zap.L().Debug("postgres: upsert jobs",
		zap.Int("submitted", len(jobs)),
		zap.Int("inserted", len(inserted)),
	)
	return inserted, nil
}

func (s *PostgresStore) PendingGeocode(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM jobs WHERE `+pendingClause+` ORDER BY created_at, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending geocode")
	}
	jobs, err := pgx.CollectRows(rows, scanPostgresJob)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan pending geocode")
	}
	return jobs, nil
}

func (s *PostgresStore) CountPendingGeocode(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE `+pendingClause).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count pending geocode")
	}
	return n, nil
}

func (s *PostgresStore) UpdateGeocode(ctx context.Context, id string, u GeocodeUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET lat = $1, lng = $2, zip = COALESCE(NULLIF($3, ''), zip),
			geocode_status = $4, needs_geocode = FALSE
		WHERE id = $5`,
		u.Lat, u.Lng, u.Zip, string(u.Status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update geocode %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RequeueNoMatch(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET needs_geocode = TRUE, geocode_status = 'pending' WHERE geocode_status = 'no_match'`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: requeue no_match")
	}
	return int(tag.RowsAffected()), nil
}

func scanPostgresJob(row pgx.CollectableRow) (model.Job, error) {
	var (
		j      model.Job
		date   time.Time
		status string
	)
	err := row.Scan(
		&j.ID, &j.Name, &date, &j.Price, &j.ServiceType, &j.LeadSource,
		&j.Street, &j.City, &j.State, &j.Zip, &j.FullAddress,
		&j.Lat, &j.Lng, &j.NeedsGeocode, &status, &j.CreatedAt,
	)
	if err != nil {
		return j, err
	}
	j.ServiceDate = date.Format(validate.DateLayout)
	j.GeocodeStatus = model.GeocodeStatus(status)
	return j, nil
}
