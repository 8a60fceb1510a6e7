package table

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable — транспорт/авторизация/таймаут. Повторить позже.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRowNotFound — для update/delete не нашлось ни одной строки.
	ErrRowNotFound = errors.New("row not found")
	// ErrConcurrentOverwriteRisk — полная перезапись отклонена: таблица изменилась после чтения снимка.
	ErrConcurrentOverwriteRisk = errors.New("concurrent overwrite risk")
	// ErrInvalidArgument — пустой Match или пустой набор полей: ошибка вызывающего кода.
	ErrInvalidArgument = errors.New("invalid argument")
)

// OpError — ошибка операции хранилища с привязкой к таблице.
type OpError struct {
	Op    string
	Table string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("table %s: %s: %v", e.Table, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// classify оставляет доменные ошибки бэкенда как есть, всё остальное — ErrStoreUnavailable.
func classify(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrRowNotFound), errors.Is(err, ErrConcurrentOverwriteRisk),
		errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrInvalidArgument):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		err = fmt.Errorf("%w: timeout: %w", ErrStoreUnavailable, err)
	default:
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &OpError{Op: op, Table: name, Err: err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRowNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrentOverwriteRisk):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	default:
		return "unavailable"
	}
}
