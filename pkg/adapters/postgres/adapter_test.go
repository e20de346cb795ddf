package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
		want    string
		wantErr string
	}{
		{
			name:    "basic connection",
			options: map[string]string{"host": "localhost", "port": "5432", "database": "testdb", "user": "user", "password": "pass"},
			want:    "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name:    "with custom sslmode",
			options: map[string]string{"host": "prod.example.com", "database": "proddb", "user": "admin", "sslmode": "require"},
			want:    "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:    "defaults",
			options: map[string]string{"database": "mydb"},
			want:    "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name:    "connect timeout",
			options: map[string]string{"database": "mydb", "port": "5433", "connect_timeout": "3"},
			want:    "host=localhost port=5433 dbname=mydb sslmode=disable connect_timeout=3",
		},
		{
			name:    "dsn wins",
			options: map[string]string{"dsn": "postgres://u@db/x", "database": "ignored"},
			want:    "postgres://u@db/x",
		},
		{
			name:    "no database",
			options: map[string]string{"host": "db"},
			wantErr: "dsn or database is required",
		},
		{
			name:    "unknown option",
			options: map[string]string{"database": "x", "schema": "public"},
			wantErr: "invalid postgres options",
		},
		{
			name:    "bad port",
			options: map[string]string{"database": "x", "port": "five"},
			wantErr: "invalid postgres options",
		},
		{
			name:    "negative port",
			options: map[string]string{"database": "x", "port": "-1"},
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseParams(tt.options)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ConnString())
		})
	}
}

func TestCreateStatement(t *testing.T) {
	got := createStatement("combined",
		[]string{"Code3", "Year", "PctGDP"},
		[]adapter.Kind{adapter.KindText, adapter.KindInteger, adapter.KindReal})
	assert.Equal(t, `CREATE TEMP TABLE "combined" ("Code3" TEXT, "Year" BIGINT, "PctGDP" DOUBLE PRECISION)`, got)
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	assert.False(t, a.IsConnected())
	assert.ErrorIs(t, a.LoadTable(ctx, "t", "x.txt"), adapter.ErrNotConnected)
	assert.ErrorIs(t, a.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := a.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, a.Close())
}

func TestAdapter_Registered(t *testing.T) {
	assert.NoError(t, adapter.CheckEngine(Name))
	adp, err := adapter.NewEngine(core.AdapterConfig{Type: Name}, nil)
	require.NoError(t, err)
	assert.Equal(t, Name, adp.Name())
}

func TestAdapter_ConnectErrors(t *testing.T) {
	a := New(nil)
	err := a.Connect(context.Background(), core.AdapterConfig{Type: Name})
	assert.ErrorContains(t, err, "dsn or database is required")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = a.Connect(ctx, core.AdapterConfig{Type: Name, Options: map[string]string{
		"host": "127.0.0.1", "port": "1", "database": "x", "connect_timeout": "1",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping pgx")
	assert.False(t, a.IsConnected())
}

// TestAdapter_LoadTable needs a live server; set HOUSETAX_TEST_POSTGRES_DSN.
func TestAdapter_LoadTable(t *testing.T) {
	dsn := os.Getenv("HOUSETAX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOUSETAX_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	a := New(nil)
	require.NoError(t, a.Connect(ctx, core.AdapterConfig{Type: Name, Options: map[string]string{"dsn": dsn}}))
	t.Cleanup(func() { _ = a.Close() })

	path := filepath.Join(t.TempDir(), "combined.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Code3\tYear\tPctGDP\nAUS\t2000\t1.5\nAUS\t2020\t\n"), 0o600))
	require.NoError(t, a.LoadTable(ctx, "combined", path))

	rows, err := a.Query(ctx, `SELECT "Code3", "Year", "PctGDP" IS NULL FROM combined ORDER BY "Year"`)
	require.NoError(t, err)
	res, err := adapter.Collect(rows)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"AUS", "2000", "false"}, {"AUS", "2020", "true"}}, res.Rows)
}
