package domain

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedExpression: выражение времени не распознано.
	ErrMalformedExpression = errors.New("malformed time expression")
	// ErrInvalidCalendarDate: дата похожа на правду, но не существует в календаре.
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
	// ErrNotFound: запись уже удалена или не существовала.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyConsumed: токен отмены уже использован или истёк.
	ErrAlreadyConsumed = errors.New("undo token already consumed")
	// ErrDeliveryFailure: транспорт не смог отправить сообщение.
	ErrDeliveryFailure = errors.New("delivery failure")
	// ErrPendingExists: у серии уже есть ожидающее вхождение.
	ErrPendingExists = errors.New("series already has a pending occurrence")
	// ErrForbidden: пользователь не может управлять чужим напоминанием.
	ErrForbidden = errors.New("forbidden")
)

// ParseError привязывает ошибку разбора к фрагменту ввода, на котором она возникла.
// errors.Is по-прежнему видит ErrMalformedExpression и ErrInvalidCalendarDate.
type ParseError struct {
	Fragment string
	Err      error
}

func (e *ParseError) Error() string { return e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// WithFragment оборачивает err фрагментом ввода. Уже привязанная ошибка
// возвращается как есть: ближайший к месту разбора фрагмент точнее.
func WithFragment(err error, fragment string) error {
	if err == nil {
		return nil
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Fragment: strings.TrimSpace(fragment), Err: err}
}

// FragmentOf достаёт фрагмент ввода из ошибки разбора.
func FragmentOf(err error) (string, bool) {
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Fragment == "" {
		return "", false
	}
	return pe.Fragment, true
}
