package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInsertConfig = InsertConfig{
	Table:        "public.jobs",
	Columns:      []string{"id", "name"},
	ConflictKeys: []string{"name"},
	Returning:    "id",
}

func TestBulkInsertIgnore_EmptyRows(t *testing.T) {
	ids, err := BulkInsertIgnore(context.TODO(), nil, testInsertConfig, nil)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBulkInsertIgnore_NoColumns(t *testing.T) {
	_, err := BulkInsertIgnore(context.TODO(), nil, InsertConfig{
		Table:        "public.jobs",
		ConflictKeys: []string{"id"},
		Returning:    "id",
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkInsertIgnore_NoConflictKeys(t *testing.T) {
	_, err := BulkInsertIgnore(context.TODO(), nil, InsertConfig{
		Table:     "public.jobs",
		Columns:   []string{"id", "name"},
		Returning: "id",
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkInsertIgnore_NoReturning(t *testing.T) {
	_, err := BulkInsertIgnore(context.TODO(), nil, InsertConfig{
		Table:        "public.jobs",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no returning column specified")
}

func TestBulkInsertIgnore_SkipsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_public_jobs"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_public_jobs"}, []string{"id", "name"}).
		WillReturnResult(3)
	mock.ExpectQuery(`ON CONFLICT \("name"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a").AddRow("c"))
	mock.ExpectCommit()

	rows := [][]any{{"a", "x"}, {"b", "x"}, {"c", "y"}}
	ids, err := BulkInsertIgnore(context.Background(), mock, testInsertConfig, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertIgnore_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_public_jobs"}, []string{"id", "name"}).
		WillReturnError(fmt.Errorf("permission denied"))
	mock.ExpectRollback()

	_, err = BulkInsertIgnore(context.Background(), mock, testInsertConfig, [][]any{{"a", "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for public.jobs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"jobs", `"jobs"`},
		{"public.jobs", `"public"."jobs"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
