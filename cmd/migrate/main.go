package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ariefcatur/go-kitchen-orders/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

const usage = "usage: migrate <up|down|version|force N>"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.ValidateMigrate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	flag.Parse()
	if flag.NArg() < 1 {
		logger.Error(usage)
		os.Exit(2)
	}

	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresDSN)
	if err != nil {
		logger.Error("open migrations", "source", cfg.MigrationsPath, "error", err)
		os.Exit(1)
	}
	err = run(m, flag.Args(), logger)
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		logger.Warn("close migrations", "source_error", srcErr, "db_error", dbErr)
	}
	if err != nil {
		logger.Error("migrate", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, args []string, logger *slog.Logger) error {
	switch cmd := args[0]; cmd {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema up to date")
			return nil
		}
		if err != nil {
			return err
		}
	case "down":
		err := m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("nothing to roll back")
			return nil
		}
		if err != nil {
			return err
		}
	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("force: bad version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q; %s", cmd, usage)
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("schema version", "version", v, "dirty", dirty)
	return nil
}
