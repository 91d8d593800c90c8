package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertConfig defines the parameters for a bulk insert-or-skip operation.
type InsertConfig struct {
	Table        string   // target table (e.g., "public.jobs")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	Returning    string   // column returned for each newly inserted row
}

// BulkInsertIgnore inserts rows and silently skips those that collide with
// the unique constraint on ConflictKeys, including duplicates inside rows.
// It returns the Returning column of every row actually inserted.
//  1. Creates a temp table shaped like the target
//  2. COPY rows into the temp table
//  3. INSERT INTO target SELECT ... FROM temp ON CONFLICT (keys) DO NOTHING RETURNING col
//  4. The temp table is dropped on commit
func BulkInsertIgnore(ctx context.Context, pool Pool, cfg InsertConfig, rows [][]any) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if len(cfg.Columns) == 0 {
		return nil, eris.New("db: insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return nil, eris.New("db: insert: no conflict keys specified")
	}
	if cfg.Returning == "" {
		return nil, eris.New("db: insert: no returning column specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: insert: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tempTable := TempTableName(cfg.Table)

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return nil, eris.Wrapf(err, "db: insert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return nil, eris.Wrapf(err, "db: insert: COPY into temp table for %s", cfg.Table)
	}

	colList := quoteAndJoin(cfg.Columns)
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING RETURNING %s",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		pgx.Identifier{cfg.Returning}.Sanitize(),
	)

	result, err := tx.Query(ctx, insertSQL)
	if err != nil {
		return nil, eris.Wrapf(err, "db: insert: INSERT ON CONFLICT for %s", cfg.Table)
	}
	inserted, err := pgx.CollectRows(result, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrapf(err, "db: insert: collect inserted keys for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: insert: commit tx")
	}

	return inserted, nil
}

// TempTableName derives the per-transaction staging table for table.
func TempTableName(table string) string {
	return "_tmp_insert_" + strings.ReplaceAll(table, ".", "_")
}

// sanitizeTable handles schema-qualified table names like "public.jobs".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
