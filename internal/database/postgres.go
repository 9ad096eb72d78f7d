package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func postgresDialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.Open(dsn), nil
}

// buildPostgresDSN assembles a keyword/value DSN. sslmode defaults to
// disable for in-cluster traffic; deployments crossing a network boundary
// set it explicitly via options.
func buildPostgresDSN(cfg Config) (string, error) {
	if dsn := cfg.DSN; dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	parts := []string{
		"host=" + stringOr(cfg.Host, "localhost"),
		fmt.Sprintf("port=%d", intOr(cfg.Port, 5432)),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+cfg.Password)
	}

	options := cloneOptions(cfg.Options)
	if _, ok := options["sslmode"]; !ok {
		options["sslmode"] = "disable"
	}
	parts = append(parts, sortedOptions(options)...)

	return strings.Join(parts, " "), nil
}
