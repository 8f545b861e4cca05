package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"postflow/internal/cli"
	"postflow/internal/config"
	"postflow/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.Location()).With("postflowctl")
	os.Exit(cli.Execute(context.Background(), cli.NewEnv(cfg, log), os.Args[1:], os.Stderr))
}
