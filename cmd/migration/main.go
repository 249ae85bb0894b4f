package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/riskibarqy/guildhall/internal/platform/database"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

var errUsage = errors.New("usage")

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

type command struct {
	usage string
	run   func(m migrator, args []string, logger *logging.Logger) error
}

var commands = map[string]command{
	"up": {
		usage: "up",
		run: func(m migrator, _ []string, logger *logging.Logger) error {
			return report(logger, m.Up(), "migrations applied")
		},
	},
	"down": {
		usage: "down [steps]",
		run: func(m migrator, args []string, logger *logging.Logger) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return report(logger, m.Steps(-steps), "migrations rolled back", "steps", steps)
		},
	},
	"goto": {
		usage: "goto <version>",
		run: func(m migrator, args []string, logger *logging.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: goto requires a target version", errUsage)
			}
			target, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target version %q: %w", args[0], err)
			}
			return report(logger, m.Migrate(uint(target)), "migrated", "version", target)
		},
	},
	"force": {
		usage: "force <version>",
		run: func(m migrator, args []string, logger *logging.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: force requires a version", errUsage)
			}
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return fmt.Errorf("force version %d: %w", version, err)
			}
			logger.Info("version forced", "version", version)
			return nil
		},
	},
	"version": {
		usage: "version",
		run: func(m migrator, _ []string, _ *logging.Logger) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("version: none")
				fmt.Println("dirty: false")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			fmt.Printf("version: %d\n", version)
			fmt.Printf("dirty: %t\n", dirty)
			return nil
		},
	},
}

func main() {
	logger := logging.NewJSON(logging.LevelInfo).Named("guildhall-migration")
	defer func() { _ = logger.Sync() }()

	if err := run(os.Args[1:], os.Getenv, logger); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(err)
			os.Exit(2)
		}
		logger.Error("migration failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, logger *logging.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	if name == "migrate" {
		name = "goto"
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	dbURL := strings.TrimSpace(getenv("DB_URL"))
	if dbURL == "" {
		return errors.New("DB_URL is required")
	}
	dbURL = database.NormalizeURL(dbURL, envBool(getenv("DB_DISABLE_PREPARED_BINARY_RESULT"), true))

	dir, err := resolveMigrationsDir(getenv("MIGRATIONS_DIR"), getenv("MIGRATIONS_PATH"))
	if err != nil {
		return err
	}
	sourceURL := "file://" + filepath.ToSlash(dir)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Warn("close migrator failed", "error", err)
		}
	}()

	return cmd.run(m, args[1:], logger.With("command", name, "source", sourceURL))
}

// report treats ErrNoChange as success.
func report(logger *logging.Logger, err error, msg string, args ...any) error {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migration changes")
		return nil
	case err != nil:
		return err
	}
	logger.Info(msg, args...)
	return nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0, got %d", steps)
	}
	return steps, nil
}

func parseForceVersion(raw string) (int, error) {
	// -1 clears the version table the way migrate's own CLI allows.
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < migrate.NilVersion {
		return 0, fmt.Errorf("version must be >= %d, got %d", migrate.NilVersion, value)
	}
	return value, nil
}

func resolveMigrationsDir(explicit ...string) (string, error) {
	candidates := append(explicit, "./db/migrations", "/app/db/migrations")
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", errors.New("migration directory not found (checked MIGRATIONS_DIR, MIGRATIONS_PATH, ./db/migrations, /app/db/migrations)")
}

func envBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func printUsage(err error) {
	bin := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "%v\n", err)
	fmt.Fprintf(os.Stderr, "usage: %s <command> [args]\n", bin)
	for _, name := range []string{"up", "down", "goto", "force", "version"} {
		fmt.Fprintf(os.Stderr, "  %s %s\n", bin, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "example: %s goto 1776211260\n", bin)
}
