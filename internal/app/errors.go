package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Spok95/okr-tracker/internal/table"
)

var (
	ErrUnauthenticated      = errors.New("wrong email or password")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrPeriodLocked         = errors.New("period is locked")
	ErrDuplicateObjective   = errors.New("duplicate objective")
	ErrNotApproved          = errors.New("key result is not approved")
	ErrAlreadyApproved      = errors.New("key result is already approved")
	ErrDeletionNotRequested = errors.New("deletion was not requested")
	ErrReviewFinalized      = errors.New("final review is finalized")
	ErrAlreadyExists        = errors.New("already exists")

	// ErrTryAgain — хранилище недоступно, сохранение не выполнено. Повторить позже.
	ErrTryAgain = errors.New("save failed, please retry")
	// ErrStaleRecord — строка исчезла или таблица изменилась между чтением и записью.
	ErrStaleRecord = errors.New("record changed, reload and retry")
)

// storeErr переводит ошибку хранилища в доменную. Исходная ошибка остаётся в цепочке.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, table.ErrStoreUnavailable):
		return fmt.Errorf("%w: %w", ErrTryAgain, err)
	case errors.Is(err, table.ErrRowNotFound), errors.Is(err, table.ErrConcurrentOverwriteRisk):
		return fmt.Errorf("%w: %w", ErrStaleRecord, err)
	default:
		return err
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// StatusOf — HTTP-статус и машинный код ошибки.
func StatusOf(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ErrDuplicateObjective):
		return http.StatusConflict, "duplicate_objective"
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, ErrStaleRecord):
		return http.StatusConflict, "stale_record"
	case errors.Is(err, ErrPeriodLocked):
		return http.StatusUnprocessableEntity, "period_locked"
	case errors.Is(err, ErrNotApproved):
		return http.StatusUnprocessableEntity, "not_approved"
	case errors.Is(err, ErrAlreadyApproved):
		return http.StatusUnprocessableEntity, "already_approved"
	case errors.Is(err, ErrDeletionNotRequested):
		return http.StatusUnprocessableEntity, "deletion_not_requested"
	case errors.Is(err, ErrReviewFinalized):
		return http.StatusUnprocessableEntity, "review_finalized"
	case errors.Is(err, ErrTryAgain):
		return http.StatusServiceUnavailable, "try_again"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
