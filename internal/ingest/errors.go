package ingest

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrColumnCount        = errors.New("unexpected column count")
	ErrLineTooLong        = errors.New("line too long")

	ErrMissingField     = errors.New("missing field")
	ErrUnknownPair      = errors.New("unknown pair")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrMalformedOHLCV   = errors.New("malformed ohlcv")
	ErrInconsistentOHLC = errors.New("inconsistent ohlc")
	ErrNegativeVolume   = errors.New("negative volume")
)

// ValidationError names the field that broke a candle rule.
// errors.Is matches it against the sentinel in Err.
type ValidationError struct {
	Field  string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func violation(field string, err error, format string, args ...any) error {
	return &ValidationError{Field: field, Err: err, Detail: fmt.Sprintf(format, args...)}
}
