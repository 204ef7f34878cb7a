package chaterrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Missing: []int64{3, 999999}}
	assert.Equal(t, "unknown or inactive user ids: [3, 999999]", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput), "validation failures classify as invalid input")
}
