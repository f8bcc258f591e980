package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "dialogues/pkg/errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// storageError помечает сбои соединения и таймауты как ErrStorageUnavailable.
// Повторов не делаем, решение за вызывающим
func storageError(err error) error {
	if err == nil {
		return nil
	}

	var connectErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		errors.As(err, &connectErr):
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Класс 08 - ошибки соединения, 57P - сервер останавливается
		if (len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08") || pgErr.Code == "57P01" || pgErr.Code == "57P03" {
			return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}
	}
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
