package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mysqlDialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return mysql.Open(dsn), nil
}

// buildMySQLDSN renders user[:password]@tcp(host:port)/name with options in
// stable order. parseTime matters here: model timestamps scan back into
// time.Time and fail on raw []byte columns.
func buildMySQLDSN(cfg Config) (string, error) {
	if dsn := cfg.DSN; dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	login := cfg.User
	if cfg.Password != "" {
		login += ":" + cfg.Password
	}
	addr := fmt.Sprintf("%s:%d", stringOr(cfg.Host, "127.0.0.1"), intOr(cfg.Port, 3306))

	options := cloneOptions(cfg.Options)
	for key, value := range map[string]string{"charset": "utf8mb4", "parseTime": "True", "loc": "Local"} {
		if _, ok := options[key]; !ok {
			options[key] = value
		}
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", login, addr, cfg.Name, strings.Join(sortedOptions(options), "&")), nil
}
