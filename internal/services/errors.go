package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Unique-index violations are how milestone awards and feed fan-out turn
// replays into no-ops, so detection has to hold on sqlite, postgres, and
// mysql alike.
func isUniqueConstraintError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	case isPostgresDuplicate(err), isMySQLDuplicate(err):
		return true
	}

	// sqlite reports no typed driver error here; fall back on message text.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}

// Postgres signals unique violations with SQLSTATE 23505.
func isPostgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505"
}

// MySQL error 1062 is ER_DUP_ENTRY.
func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062
}
