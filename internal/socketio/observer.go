package socketio

import (
	"fmt"

	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Observer receives connection lifecycle notifications and errors that do
// not belong to a caller's request. Calls come from the client's own
// goroutines and must not block.
type Observer interface {
	OnConnected()
	OnDisconnected(reason string)
	OnError(err error)
}

type NopObserver struct{}

func (NopObserver) OnConnected()          {}
func (NopObserver) OnDisconnected(string) {}
func (NopObserver) OnError(error)         {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Connected    func()
	Disconnected func(reason string)
	Error        func(err error)
}

func (o ObserverFuncs) OnConnected() {
	if o.Connected != nil {
		o.Connected()
	}
}

func (o ObserverFuncs) OnDisconnected(reason string) {
	if o.Disconnected != nil {
		o.Disconnected(reason)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

type logObserver struct {
	log *logging.Logger
}

// LogObserver reports lifecycle events through l.
func LogObserver(l *logging.Logger) Observer {
	return logObserver{log: l}
}

func (o logObserver) OnConnected() {
	o.log.Component("socket").Info("connected")
}

func (o logObserver) OnDisconnected(reason string) {
	o.log.Component("socket").WithField("reason", reason).Warn("disconnected")
}

func (o logObserver) OnError(err error) {
	o.log.Component("socket").WithError(err).Error("socket error")
}

// ConnectionError is returned when no connection could be established
// within the reconnection budget.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("socket.io connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
