package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrSlotTaken, "staff member already booked")
	wrapped := fmt.Errorf("reserve: %w", clone)

	assert.True(t, errors.Is(wrapped, ErrSlotTaken))
	assert.False(t, errors.Is(wrapped, ErrTransient))
	assert.Equal(t, "staff member already booked", FromError(wrapped).Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	detailed := WithDetails(ErrValidation, map[string]interface{}{"field": "startUtc"})

	assert.Nil(t, ErrValidation.Details)
	assert.Equal(t, "startUtc", detailed.Details["field"])
	assert.Equal(t, http.StatusUnprocessableEntity, detailed.Status)
}
