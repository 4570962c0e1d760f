package chiefpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/ChiefPay/chiefpay-go/internal/socketio"
	"github.com/ChiefPay/chiefpay-go/providers"
	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
	"github.com/ChiefPay/chiefpay-go/utils"
)

type (
	Observer      = socketio.Observer
	ObserverFuncs = socketio.ObserverFuncs
	NopObserver   = socketio.NopObserver
	State         = socketio.State
)

const (
	StateDisconnected = socketio.StateDisconnected
	StateConnecting   = socketio.StateConnecting
	StateConnected    = socketio.StateConnected
	StateReconnecting = socketio.StateReconnecting
	StateClosed       = socketio.StateClosed
)

// LogObserver reports connection lifecycle and channel errors through l.
func LogObserver(l *logging.Logger) Observer {
	return socketio.LogObserver(l)
}

type SocketOptions struct {
	// Path of the Socket.IO endpoint, socketio.DefaultPath when empty.
	Path                 string
	ConnectionTimeout    time.Duration
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	Observer             Observer
	Dialer               *websocket.Dialer
}

func SocketOptionsFromConfig(c utils.Config) SocketOptions {
	attempts := c.SocketReconnectionAttempts
	if attempts == 0 {
		// Zero in the config means no reconnects, not the library default.
		attempts = -1
	}
	return SocketOptions{
		ConnectionTimeout:    c.SocketConnectionTimeout,
		ReconnectionAttempts: attempts,
		ReconnectionDelay:    c.SocketReconnectionDelay,
	}
}

// SocketClient receives push events from ChiefPay. Handlers registered
// before or after Connect stay in place across reconnects.
type SocketClient struct {
	conn     *socketio.Client
	observer Observer
}

func NewSocketClient(opts Options, sopts SocketOptions) (*SocketClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, providers.NewValidationError("api key is required", "apiKey")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if sopts.Observer == nil {
		sopts.Observer = NopObserver{}
	}

	header := http.Header{}
	header.Set(providers.APIKeyHeader, opts.APIKey)
	header.Set("User-Agent", userAgent(opts.UserAgentSuffix))

	conn, err := socketio.NewClient(socketio.Config{
		URL:                  opts.BaseURL,
		Path:                 sopts.Path,
		Header:               header,
		ConnectionTimeout:    sopts.ConnectionTimeout,
		ReconnectionAttempts: sopts.ReconnectionAttempts,
		ReconnectionDelay:    sopts.ReconnectionDelay,
		Observer:             sopts.Observer,
		Logger:               opts.Logger,
		Dialer:               sopts.Dialer,
	})
	if err != nil {
		return nil, err
	}
	return &SocketClient{conn: conn, observer: sopts.Observer}, nil
}

// Connect returns once the channel is joined, or a *ConnectionError when
// every attempt failed. It is a no-op when already connected.
func (s *SocketClient) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

func (s *SocketClient) Disconnect() error {
	return s.conn.Disconnect()
}

// Close disconnects and stops event delivery for good. It must not be
// called from inside a handler.
func (s *SocketClient) Close() error {
	return s.conn.Close()
}

func (s *SocketClient) State() State {
	return s.conn.State()
}

func (s *SocketClient) Endpoint() string {
	return s.conn.Endpoint()
}

// OnNotification registers the handler for invoice and transaction
// events. The server is acknowledged with the handler's outcome.
func (s *SocketClient) OnNotification(handler func(context.Context, Notification) error) {
	On(s, EventNotification, true, handler)
}

// OnRates registers the handler for rate updates. Rates are not
// acknowledged.
func (s *SocketClient) OnRates(handler func(context.Context, Rates) error) {
	On(s, EventRates, false, handler)
}

type ackPayload struct {
	Status string `json:"status"`
}

// On registers handler for event, replacing any earlier one. The first
// event argument is decoded into T. When ackRequired is set and the
// server asked for one, the event is acknowledged exactly once with the
// handler's outcome.
func On[T any](s *SocketClient, event string, ackRequired bool, handler func(context.Context, T) error) {
	s.conn.On(event, func(ctx context.Context, ev *socketio.Event) {
		err := deliver(ctx, ev, handler)

		if ackRequired && ev.AckRequested() {
			status := ackSuccess
			if err != nil {
				status = ackError
			}
			if ackErr := ev.Ack(ackPayload{Status: status}); ackErr != nil {
				s.observer.OnError(&ChannelError{Event: event, Err: errors.Wrap(ackErr, "send ack")})
			}
		}
		if err != nil {
			s.observer.OnError(&ChannelError{Event: event, Err: err})
		}
	})
}

func deliver[T any](ctx context.Context, ev *socketio.Event, handler func(context.Context, T) error) (err error) {
	var args []json.RawMessage
	if err := json.Unmarshal(ev.Args, &args); err != nil {
		return errors.Wrap(err, "decode event arguments")
	}
	if len(args) == 0 {
		return errors.New("event without payload")
	}
	var payload T
	if err := json.Unmarshal(args[0], &payload); err != nil {
		return errors.Wrap(err, "decode event payload")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, payload)
}
