package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Config selects and parameterises the backing database. SQLite covers
// single-node and test deployments; postgres and mysql serve shared ones.
type Config struct {
	Driver string
	Path   string // SQLite file path when Driver == sqlite
	DSN    string // Optional DSN override for any driver

	// Server-based drivers (postgres, mysql).
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string
}

// Open dials the configured database and returns the shared gorm handle.
func Open(cfg Config) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		err       error
	)

	switch normaliseDriver(cfg.Driver) {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		dialector, err = postgresDialector(cfg)
	case "mysql":
		dialector, err = mysqlDialector(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return gorm.Open(dialector, &gorm.Config{})
}

// normaliseDriver folds aliases so callers can say postgresql or mariadb.
func normaliseDriver(driver string) string {
	switch driver = strings.ToLower(strings.TrimSpace(driver)); driver {
	case "":
		return "sqlite"
	case "postgresql":
		return "postgres"
	case "mariadb":
		return "mysql"
	default:
		return driver
	}
}

// AutoMigrateAndSeed migrates the schema and seeds the event type catalog.
// Runs on every start; both steps are idempotent.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed event types: %w", err)
	}
	return nil
}

// sortedOptions renders connection options as key=value pairs in a stable
// order so generated DSNs are deterministic.
func sortedOptions(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+options[key])
	}
	return out
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOr(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func cloneOptions(options map[string]string) map[string]string {
	out := make(map[string]string, len(options))
	for key, value := range options {
		out[key] = value
	}
	return out
}
