package migration

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"postflow/internal/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentinelQuery = "SELECT to_regclass('public.posts') IS NOT NULL"

func TestEnsureMigrated(t *testing.T) {
	ctx := context.Background()

	t.Run("skips when schema exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		var buf bytes.Buffer
		mock.ExpectQuery(regexp.QuoteMeta(sentinelQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err = EnsureMigrated(ctx, db, logger.New(&buf, time.UTC), "db")
		assert.NoError(t, err)
		assert.Contains(t, buf.String(), "db_migration_skip")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("runs every step in order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinelQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for _, s := range steps {
			mock.ExpectExec(regexp.QuoteMeta(s.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		}

		var buf bytes.Buffer
		err = EnsureMigrated(ctx, db, logger.New(&buf, time.UTC), "db")
		assert.NoError(t, err)
		assert.Equal(t, len(steps), strings.Count(buf.String(), "db_migration_step"))
		assert.Contains(t, buf.String(), "db_migration_success")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at failing step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinelQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(steps[0].SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(steps[1].SQL)).WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(ctx, db, logger.Nop(), "db")
		assert.ErrorContains(t, err, "migration step create_table_users failed: permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sentinel check error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinelQuery)).WillReturnError(errors.New("conn reset"))

		err = EnsureMigrated(ctx, db, logger.Nop(), "db")
		assert.ErrorContains(t, err, "failed to check sentinel table")
	})
}

func TestSteps_UsersBeforePosts(t *testing.T) {
	names := Steps()
	var users, posts int
	for i, n := range names {
		switch n {
		case "create_table_users":
			users = i
		case "create_table_posts":
			posts = i
		}
	}
	assert.Less(t, users, posts)
}
