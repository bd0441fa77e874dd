package main

import (
	"os"
	"strings"

	"github.com/nimasrn/ar-collections/internal/config"
	"github.com/nimasrn/ar-collections/migrations"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

// usage: cli [migrate|status] [--env=.env]
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := config.Get().PostgresWrite()
	switch command() {
	case "migrate":
		err = pg.Migrate(pgConf, migrations.FS, ".")
	case "status":
		err = pg.MigrationStatus(pgConf, migrations.FS, ".")
	default:
		logger.Error("unknown command, expected migrate or status", "command", command())
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration: command failed", "command", command(), "error", err)
		os.Exit(1)
	}
}

func command() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "migrate"
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}
