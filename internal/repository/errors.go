package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories translate into sentinels
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// pgError returns the SQLSTATE code and constraint name carried by err, if any
func pgError(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgError(err)
	return code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _ := pgError(err)
	return code == codeForeignKeyViolation
}

func isCheckViolation(err error) bool {
	code, _ := pgError(err)
	return code == codeCheckViolation
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
