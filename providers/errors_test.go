package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChiefPay/chiefpay-go/models"
)

func TestAPIError_Error(t *testing.T) {
	err := newAPIError(404, "", `{"status":"error","message":"invoice not found"}`)
	assert.Equal(t, `HTTP 404 Not Found. Body: {"status":"error","message":"invoice not found"}`, err.Error())
	assert.True(t, err.IsNotFound())
	assert.False(t, err.IsUnauthorized())
	assert.False(t, err.Temporary())
	assert.Nil(t, err.Unwrap())
}

func TestAPIError_Helpers(t *testing.T) {
	assert.True(t, newAPIError(401, "", "").IsUnauthorized())
	assert.True(t, newAPIError(429, "", "").IsRateLimited())
	assert.True(t, newAPIError(429, "", "").Temporary())
	assert.Equal(t, models.ErrorKindBadGateway, newAPIError(502, "", "").Kind)
}

func TestAPIError_NetworkCause(t *testing.T) {
	inner := errors.New("connection reset")
	err := newNetworkError(inner)
	assert.ErrorIs(t, err, inner)
	assert.ErrorAs(t, err, new(*APIError))
	assert.Equal(t, models.ErrorKindUnknown, err.Kind)
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("at least one must be provided", "id", "orderId")
	assert.Equal(t, "validation failed on id, orderId: at least one must be provided", err.Error())
	assert.Equal(t, "validation failed: bad", NewValidationError("bad").Error())
}
