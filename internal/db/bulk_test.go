package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyRowsEmpty(t *testing.T) {
	n, err := CopyRows(context.Background(), nil, "experiment_events", []string{"id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"experiment_events"}, []string{"id", "type"}).
		WillReturnResult(2)

	n, err := CopyRows(context.Background(), mock, "experiment_events", []string{"id", "type"},
		[][]any{{"e1", "impression"}, {"e2", "conversion"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertEmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertSpec{
		Table:        "market_data",
		Columns:      []string{"content_type", "segment"},
		ConflictKeys: []string{"content_type"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsertMissingSpec(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertSpec{Table: "market_data"},
		[][]any{{"blog_post", "default"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns and conflict keys are required")
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_market_data"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_market_data"},
		[]string{"content_type", "segment", "median_price"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "market_data"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertSpec{
		Table:        "market_data",
		Columns:      []string{"content_type", "segment", "median_price"},
		ConflictKeys: []string{"content_type", "segment"},
	}, [][]any{
		{"blog_post", "default", "500"},
		{"article", "default", "800"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertSpec{
		Table:        "market_data",
		Columns:      []string{"content_type"},
		ConflictKeys: []string{"content_type"},
	}, [][]any{{"blog_post"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create temp table")
}

func TestQuoteJoin(t *testing.T) {
	assert.Equal(t, `"content_type", "segment"`, quoteJoin([]string{"content_type", "segment"}))
}
