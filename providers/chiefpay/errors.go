package chiefpay

import (
	"fmt"

	"github.com/ChiefPay/chiefpay-go/internal/socketio"
	"github.com/ChiefPay/chiefpay-go/providers"
)

type (
	APIError        = providers.APIError
	ValidationError = providers.ValidationError
	ConnectionError = socketio.ConnectionError
)

// ChannelError is reported to the Observer when an inbound event could
// not be decoded or its handler failed.
type ChannelError struct {
	Event string
	Err   error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("socket event %q: %v", e.Event, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
