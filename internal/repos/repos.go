package repos

import (
    "errors"
    "strings"

    "github.com/jackc/pgx/v5/pgconn"
    "gorm.io/gorm"
)

// pick returns tx when a caller is inside a transaction, db otherwise.
func pick(tx, db *gorm.DB) *gorm.DB {
    if tx != nil {
        return tx
    }
    return db
}

// IsDuplicateKey reports whether err is a unique constraint violation on any
// of the supported drivers.
func IsDuplicateKey(err error) bool {
    if err == nil {
        return false
    }
    if errors.Is(err, gorm.ErrDuplicatedKey) {
        return true
    }
    var pgErr *pgconn.PgError
    if errors.As(err, &pgErr) && pgErr.Code == "23505" {
        return true
    }
    msg := err.Error()
    return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
