// Package cli implements postflowctl, the operator tool for schema
// migration and account administration.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/database/migration"
	"postflow/internal/logger"
	"postflow/internal/notify"
	"postflow/internal/repository/postgres"
	"postflow/internal/retry"
	"postflow/internal/service"
)

// Env is what the commands run against. Tests replace the openers.
type Env struct {
	Config *config.AppConfig
	Log    *logger.Logger

	// Migrate applies the schema.
	Migrate func(ctx context.Context) error
	// Accounts opens the account service. The returned func releases it.
	Accounts func(ctx context.Context) (service.AuthService, func() error, error)
}

// NewEnv wires the commands to PostgreSQL and the configured mailer.
func NewEnv(cfg *config.AppConfig, log *logger.Logger) *Env {
	e := &Env{Config: cfg, Log: log}

	open := func(ctx context.Context) (*sql.DB, error) {
		return database.NewPostgres(ctx, cfg.Database)
	}
	e.Migrate = func(ctx context.Context) error {
		db, err := open(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		return migration.EnsureMigrated(ctx, db, log, cfg.Database.Host)
	}
	e.Accounts = func(ctx context.Context) (service.AuthService, func() error, error) {
		db, err := open(ctx)
		if err != nil {
			return nil, nil, err
		}
		mailer, err := notify.New(cfg.SMTP, log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		n := notify.NewNotifier(mailer, retry.Default, cfg.SMTP.BaseURL, cfg.SMTP.AdminEmail, log)
		svc := service.NewAuthService(postgres.NewUserPostgres(db), auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), n, cfg.Auth.BcryptCost, log)
		return svc, db.Close, nil
	}
	return e
}

// NewRootCommand builds the postflowctl command tree.
func NewRootCommand(e *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "postflowctl",
		Short:         "Administer a postflow deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(e), newUserCommand(e), newConfigCommand(e))
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, e *Env, args []string, stderr io.Writer) int {
	root := NewRootCommand(e)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
