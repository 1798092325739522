package pg

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapPgError traduce errores de Postgres a los sentinels del repositorio.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "realm_name_key" {
			return fmt.Errorf("%w: %s", repository.ErrRealmNameTaken, pgErr.Detail)
		}
		return fmt.Errorf("%w: %s (%s)", repository.ErrConflict, pgErr.ConstraintName, pgErr.Detail)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", repository.ErrReferenced, pgErr.ConstraintName)
	}
	return err
}
