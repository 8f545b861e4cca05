package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"postflow/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  config.DatabaseConfig
		want    string
		wantErr bool
	}{
		{
			name: "password and sslmode",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "postflow", Password: "secret", Name: "postflow", SSLMode: "disable",
			},
			want: "postgres://postflow:secret@db:5432/postflow?application_name=postflow&sslmode=disable",
		},
		{
			name: "no password",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "postflow", Name: "postflow", SSLMode: "require",
			},
			want: "postgres://postflow@db:5432/postflow?application_name=postflow&sslmode=require",
		},
		{
			name: "no sslmode",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "postflow", Name: "postflow",
			},
			want: "postgres://postflow@db:5432/postflow?application_name=postflow",
		},
		{
			name:    "missing host",
			config:  config.DatabaseConfig{Port: "5432", User: "postflow", Name: "postflow"},
			wantErr: true,
		},
		{
			name:    "missing port",
			config:  config.DatabaseConfig{Host: "db", User: "postflow", Name: "postflow"},
			wantErr: true,
		},
		{
			name:    "missing user",
			config:  config.DatabaseConfig{Host: "db", Port: "5432", Name: "postflow"},
			wantErr: true,
		},
		{
			name:    "missing name",
			config:  config.DatabaseConfig{Host: "db", Port: "5432", User: "postflow"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPostgresDSN(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, errIncompleteConfig)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPostgres(t *testing.T) {
	ctx := context.Background()
	conf := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "postflow",
		Password:           "secret",
		Name:               "postflow",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}

	swapOpen := func(t *testing.T, fn func(string, string) (*sql.DB, error)) {
		orig := sqlOpen
		sqlOpen = fn
		t.Cleanup(func() { sqlOpen = orig })
	}

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		swapOpen(t, func(string, string) (*sql.DB, error) { return db, nil })
		mock.ExpectPing()

		got, err := NewPostgres(ctx, conf)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("open error", func(t *testing.T) {
		swapOpen(t, func(string, string) (*sql.DB, error) { return nil, errors.New("open error") })

		got, err := NewPostgres(ctx, conf)
		assert.ErrorContains(t, err, "sql open: open error")
		assert.Nil(t, got)
	})

	t.Run("ping error closes pool", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)

		swapOpen(t, func(string, string) (*sql.DB, error) { return db, nil })
		mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		mock.ExpectClose()

		got, err := NewPostgres(ctx, conf)
		assert.ErrorContains(t, err, "db ping: ping failed")
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("incomplete config", func(t *testing.T) {
		got, err := NewPostgres(ctx, config.DatabaseConfig{})
		assert.ErrorIs(t, err, errIncompleteConfig)
		assert.Nil(t, got)
	})
}
