package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"postflow/internal/logger"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id                   UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  email                TEXT        NOT NULL,
  password_hash        TEXT        NOT NULL,
  name                 TEXT        NOT NULL CHECK (char_length(name) BETWEEN 2 AND 50),
  role                 TEXT        NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
  approved             BOOLEAN     NOT NULL DEFAULT FALSE,
  email_verified       BOOLEAN     NOT NULL DEFAULT FALSE,
  verification_token   TEXT,
  verification_expires TIMESTAMPTZ,
  reset_token          TEXT,
  reset_expires        TIMESTAMPTZ,
  login_attempts       INTEGER     NOT NULL DEFAULT 0 CHECK (login_attempts >= 0),
  lock_until           TIMESTAMPTZ,
  last_login           TIMESTAMPTZ,
  created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_unique_index_users_email",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (lower(email));`,
	},
	{
		Name: "create_index_users_verification_token",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users (verification_token) WHERE verification_token IS NOT NULL;`,
	},
	{
		Name: "create_index_users_reset_token",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users (reset_token) WHERE reset_token IS NOT NULL;`,
	},
	{
		Name: "create_table_posts",
		SQL: `CREATE TABLE IF NOT EXISTS posts (
  id                 UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id            UUID        NOT NULL REFERENCES users (id),
  platform           TEXT        NOT NULL CHECK (platform IN ('LinkedIn', 'Twitter', 'Facebook')),
  file_ref           TEXT        NOT NULL DEFAULT '',
  file_name          TEXT        NOT NULL DEFAULT '',
  content_type       TEXT        NOT NULL DEFAULT '',
  size               BIGINT      NOT NULL DEFAULT 0 CHECK (size >= 0),
  caption            TEXT        NOT NULL DEFAULT '' CHECK (char_length(caption) <= 2000),
  description        TEXT        NOT NULL DEFAULT '',
  tags               JSONB       NOT NULL DEFAULT '[]'::jsonb,
  status             TEXT        NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'team_approved', 'client_approved', 'published', 'rejected')),
  ai_caption         BOOLEAN     NOT NULL DEFAULT FALSE,
  ai_tags            BOOLEAN     NOT NULL DEFAULT FALSE,
  ai_provider        TEXT        CHECK (ai_provider IN ('openai', 'gemini')),
  views              BIGINT      NOT NULL DEFAULT 0 CHECK (views >= 0),
  likes              BIGINT      NOT NULL DEFAULT 0 CHECK (likes >= 0),
  shares             BIGINT      NOT NULL DEFAULT 0 CHECK (shares >= 0),
  engagement         BIGINT      GENERATED ALWAYS AS (views + likes + shares) STORED,
  approved_by        UUID        REFERENCES users (id),
  client_approved_by UUID        REFERENCES users (id),
  published_at       TIMESTAMPTZ,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_posts_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id);`,
	},
	{
		Name: "create_index_posts_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_status ON posts (status);`,
	},
	{
		Name: "create_index_posts_user_platform",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_user_platform ON posts (user_id, platform);`,
	},
	{
		Name: "create_index_posts_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at);`,
	},
}

// Steps returns the names of the schema steps in the order they run.
func Steps() []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return names
}

// EnsureMigrated creates the schema unless the sentinel 'posts' table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *logger.Logger, dbHost string) error {
	log = log.With("database")
	start := time.Now()

	log.Info("db_migration_check", map[string]any{"status": "starting", "db_host": dbHost})

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.posts') IS NOT NULL").Scan(&exists); err != nil {
		log.Error("db_migration_failed", err, map[string]any{
			"status":      "error",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip", map[string]any{
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Info("db_migration_start", map[string]any{"status": "in_progress", "db_host": dbHost, "steps": len(steps)})

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed", err, map[string]any{
				"status":           "error",
				"migration_step":   step.Name,
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step", map[string]any{
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	log.Info("db_migration_success", map[string]any{
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
