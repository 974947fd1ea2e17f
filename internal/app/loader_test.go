package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoDatabase = errors.New("no database in tests")

type rangeQuerier struct {
	args []any
}

func (q *rangeQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.args = args
	return nil, errNoDatabase
}

func TestCSVLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.Nil(t, os.WriteFile(path, []byte("timestamp,total\n2024-01-01 10:00,5\n2024-01-02 11:00,7\n"), 0o600))

	records, err := CSVLoader{Path: path}.Load(context.Background())
	require.Nil(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 7.0, records[1].Total)

	_, err = CSVLoader{Path: filepath.Join(t.TempDir(), "missing.csv")}.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
