package engine

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("document not found")

	// ErrUniqueViolation is returned when a unique constraint is violated.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrCollectionMissing is returned when the physical collection for a
	// slug does not exist yet.
	ErrCollectionMissing = errors.New("collection does not exist")

	// ErrInvalidIdentifier is returned when a slug or attribute name
	// contains characters that cannot appear in a storage identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ConvertDBError converts driver-level errors to engine errors. Failures
// without a mapping are returned as-is and treated as internal.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %s", ErrCollectionMissing, pgErr.Message)
		}
	}

	return err
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
