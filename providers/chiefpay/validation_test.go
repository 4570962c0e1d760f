package chiefpay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChiefPay/chiefpay-go/providers"
)

func TestRequireAtLeast(t *testing.T) {
	assert.NoError(t, requireAtLeast(1, identifier{"id", "x"}, identifier{"orderId", ""}))
	assert.NoError(t, requireAtLeast(1, identifier{"id", ""}, identifier{"orderId", "y"}))
	assert.NoError(t, requireAtLeast(2, identifier{"id", "x"}, identifier{"orderId", "y"}))

	err := requireAtLeast(1, identifier{"id", ""}, identifier{"orderId", ""})
	var vErr *providers.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"id", "orderId"}, vErr.Fields)
	assert.Equal(t, "validation failed on id, orderId: at least one must be provided", err.Error())

	err = requireAtLeast(2, identifier{"id", "x"}, identifier{"orderId", ""})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "validation failed on id, orderId: at least 2 must be provided", err.Error())
}

func TestValidateRequest(t *testing.T) {
	err := validateRequest(CreateInvoiceRequest{Currency: "USD", Amount: decimal.RequireFromString("-1")})
	var vErr *providers.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"amount"}, vErr.Fields)
	assert.Contains(t, vErr.Message, "amount must be greater than 0")

	err = validateRequest(CreateInvoiceRequest{Amount: decimal.NewFromInt(1)})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"currency"}, vErr.Fields)
	assert.Equal(t, "currency is required", vErr.Message)

	assert.NoError(t, validateRequest(CreateInvoiceRequest{
		Currency:    "USD",
		Amount:      decimal.RequireFromString("0.01"),
		CallbackURL: "https://shop.example.com/callback",
	}))
	assert.NoError(t, validateRequest(CreateWalletRequest{OrderID: "user-1"}))
}
