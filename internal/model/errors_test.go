package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidEntityTypeError_WrapsSentinel(t *testing.T) {
	err := InvalidEntityTypeError(EntityType("bogus"))
	assert.ErrorIs(t, err, ErrInvalidEntityType)
	assert.Contains(t, err.Error(), "bogus")
}

func TestInvalidEntityNameError_WrapsSentinel(t *testing.T) {
	err := InvalidEntityNameError("   ")
	assert.ErrorIs(t, err, ErrInvalidEntityName)
}

func TestConsolidationFailedError_WrapsSentinelAndCause(t *testing.T) {
	cause := errors.New("store exploded")
	err := NewConsolidationFailed("interview-1", "corr-1", "store_error", cause)

	assert.ErrorIs(t, err, ErrConsolidationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "interview-1")
	assert.Contains(t, err.Error(), "store_error")
}
