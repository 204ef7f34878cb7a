package chaterrors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// ValidationError rejects a write because some of the referenced user
// ids do not exist or are inactive. It carries the offending ids so the
// caller gets an actionable message instead of a foreign-key failure
// halfway through a transaction.
type ValidationError struct {
	Missing []int64
}

func (e *ValidationError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("unknown or inactive user ids: [%s]", strings.Join(ids, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
