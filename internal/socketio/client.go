package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
)

const (
	DefaultPath                 = "/socket.io"
	DefaultConnectionTimeout    = 30 * time.Second
	DefaultReconnectionAttempts = 3
	DefaultReconnectionDelay    = 5 * time.Second

	writeTimeout = 10 * time.Second
)

var (
	ErrClosed            = errors.New("socket.io client is closed")
	ErrConnectInProgress = errors.New("socket.io connect already in progress")
	ErrAckNotRequested   = errors.New("event did not request an acknowledgement")
	ErrAlreadyAcked      = errors.New("event already acknowledged")
	ErrBinaryUnsupported = errors.New("binary socket.io packets are not supported")

	errServerDisconnect = errors.New("io server disconnect")
	errTransportClose   = errors.New("transport close")
)

type Config struct {
	// URL is the http(s) or ws(s) origin of the server.
	URL    string
	Path   string
	Header http.Header
	// ConnectionTimeout bounds one dial including the Socket.IO handshake.
	ConnectionTimeout time.Duration
	// ReconnectionAttempts is the number of dials after the first failed
	// one. Zero means DefaultReconnectionAttempts, negative disables them.
	ReconnectionAttempts int
	// ReconnectionDelay is the wait between dials. Zero means
	// DefaultReconnectionDelay, negative retries immediately.
	ReconnectionDelay time.Duration
	Observer          Observer
	Logger            *logging.Logger
	Dialer            *websocket.Dialer
}

// Handler processes one inbound event. Handlers registered for the same
// event name run one at a time in arrival order; a slow handler only
// delays later events of its own name.
type Handler func(ctx context.Context, ev *Event)

type Event struct {
	Name string
	// Args is the JSON array of the arguments that followed the name.
	Args json.RawMessage

	ackID *uint64
	sess  *session
	acked atomic.Bool
}

func (e *Event) AckRequested() bool {
	return e.ackID != nil
}

// Ack answers the event on the connection it arrived on. It can be
// called at most once.
func (e *Event) Ack(args ...any) error {
	if e.ackID == nil {
		return ErrAckNotRequested
	}
	if !e.acked.CompareAndSwap(false, true) {
		return ErrAlreadyAcked
	}
	pkt, err := AckPacket(*e.ackID, args...)
	if err != nil {
		return err
	}
	return e.sess.write(pkt.Encode())
}

type Client struct {
	cfg      Config
	endpoint string
	dialer   *websocket.Dialer
	observer Observer
	log      *logrus.Entry

	mu        sync.Mutex
	state     State
	sess      *session
	runCancel context.CancelFunc
	handlers  map[string]Handler
	queues    map[string]*eventQueue

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	endpoint, err := endpointURL(cfg.URL, cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}
	switch {
	case cfg.ReconnectionAttempts == 0:
		cfg.ReconnectionAttempts = DefaultReconnectionAttempts
	case cfg.ReconnectionAttempts < 0:
		cfg.ReconnectionAttempts = 0
	}
	switch {
	case cfg.ReconnectionDelay == 0:
		cfg.ReconnectionDelay = DefaultReconnectionDelay
	case cfg.ReconnectionDelay < 0:
		cfg.ReconnectionDelay = 0
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.ConnectionTimeout,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:      cfg,
		endpoint: endpoint,
		dialer:   dialer,
		observer: cfg.Observer,
		log:      cfg.Logger.Component("socket").WithField("url", endpoint),
		state:    StateDisconnected,
		handlers: make(map[string]Handler),
		queues:   make(map[string]*eventQueue),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers h for event, replacing any previous handler for that name.
// Registrations survive reconnects.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Connect dials the server, retrying per the reconnection policy, and
// returns once the namespace is joined. It is a no-op when connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	runCtx, runCancel := context.WithCancel(c.ctx)
	c.runCancel = runCancel
	c.state = StateConnecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	sess, err := c.dialWithRetry(dialCtx)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		runCancel()
		return err
	}
	if !c.attach(runCtx, sess) {
		return ErrClosed
	}
	c.observer.OnConnected()
	return nil
}

// Disconnect leaves the namespace and closes the connection. Handlers
// stay registered and Connect may be called again.
func (c *Client) Disconnect() error {
	return c.detach(StateDisconnected)
}

// Close disconnects and stops all dispatch goroutines. It is safe to call
// more than once and on a client that never connected. It must not be
// called from inside a Handler.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.detach(StateClosed)
		c.cancel()
		c.wg.Wait()
	})
	return err
}

func (c *Client) detach(next State) error {
	c.mu.Lock()
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	sess := c.sess
	c.sess = nil
	wasConnected := c.state == StateConnected
	if c.state != StateClosed {
		c.state = next
	}
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	err := sess.shutdown(true)
	if wasConnected {
		c.observer.OnDisconnected("io client disconnect")
	}
	return err
}

func (c *Client) attach(runCtx context.Context, sess *session) bool {
	c.mu.Lock()
	if runCtx.Err() != nil || c.state == StateClosed {
		c.mu.Unlock()
		_ = sess.shutdown(true)
		return false
	}
	c.sess = sess
	c.state = StateConnected
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(runCtx, sess)
	return true
}

func (c *Client) dialWithRetry(ctx context.Context) (*session, error) {
	var sess *session
	attempt := 0
	operation := func() error {
		attempt++
		s, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		sess = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("attempt", attempt).WithField("wait", wait).Debug("connect failed, retrying")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectionDelay), uint64(c.cfg.ReconnectionAttempts)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ConnectionError{URL: c.endpoint, Err: err}
	}
	return sess, nil
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "websocket handshake rejected with status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "dial websocket")
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	sess, err := c.handshake(conn)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "socket.io handshake")
		}
		return nil, err
	}
	return sess, nil
}

// handshake reads the Engine.IO open packet and joins the default
// namespace.
func (c *Client) handshake(conn *websocket.Conn) (*session, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "read open packet")
	}
	if len(data) == 0 || data[0] != EngineOpen {
		return nil, errors.Errorf("unexpected engine.io packet %q", data)
	}
	var hs Handshake
	if err := json.Unmarshal(data[1:], &hs); err != nil {
		return nil, errors.Wrap(err, "decode open packet")
	}

	sess := newSession(conn, hs)
	if err := sess.write(ConnectPacket().Encode()); err != nil {
		return nil, errors.Wrap(err, "send connect")
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "read connect ack")
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case EnginePing:
			if err := sess.write(string(EnginePong)); err != nil {
				return nil, err
			}
		case EngineClose:
			return nil, errTransportClose
		case EngineMessage:
			pkt, err := DecodePacket(string(data[1:]))
			if err != nil {
				return nil, err
			}
			if pkt.Namespace != DefaultNamespace {
				continue
			}
			switch pkt.Type {
			case PacketConnect:
				var ack struct {
					SID string `json:"sid"`
				}
				if len(pkt.Data) > 0 {
					_ = json.Unmarshal(pkt.Data, &ack)
				}
				sess.sid = ack.SID
				c.log.WithField("sid", ack.SID).Debug("namespace joined")
				return sess, nil
			case PacketConnectError:
				return nil, errors.Errorf("namespace connect rejected: %s", pkt.Data)
			}
		}
	}
}

// run owns one connection until it drops, then reconnects unless the drop
// was requested by either side.
func (c *Client) run(runCtx context.Context, sess *session) {
	defer c.wg.Done()

	err := c.readLoop(sess)
	_ = sess.shutdown(false)
	if runCtx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	if errors.Is(err, errServerDisconnect) {
		if c.state != StateClosed {
			c.state = StateDisconnected
		}
		if c.runCancel != nil {
			c.runCancel()
			c.runCancel = nil
		}
		c.mu.Unlock()
		c.observer.OnDisconnected(err.Error())
		return
	}
	if c.state != StateClosed {
		c.state = StateReconnecting
	}
	c.mu.Unlock()

	c.log.WithError(err).Debug("connection lost, reconnecting")
	c.observer.OnDisconnected(err.Error())

	next, err := c.dialWithRetry(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			return
		}
		c.mu.Lock()
		if c.state == StateReconnecting {
			c.state = StateDisconnected
		}
		if c.runCancel != nil {
			c.runCancel()
			c.runCancel = nil
		}
		c.mu.Unlock()
		c.observer.OnError(err)
		return
	}
	if c.attach(runCtx, next) {
		c.observer.OnConnected()
	}
}

func (c *Client) readLoop(sess *session) error {
	for {
		if d := sess.readTimeout(); d > 0 {
			_ = sess.conn.SetReadDeadline(time.Now().Add(d))
		}
		typ, data, err := sess.conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			c.observer.OnError(ErrBinaryUnsupported)
			continue
		}
		if err := c.handleFrame(sess, data); err != nil {
			return err
		}
	}
}

func (c *Client) handleFrame(sess *session, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case EnginePing:
		return sess.write(string(EnginePong))
	case EngineClose:
		return errTransportClose
	case EngineMessage:
		pkt, err := DecodePacket(string(data[1:]))
		if err != nil {
			c.observer.OnError(err)
			return nil
		}
		return c.handlePacket(sess, pkt)
	default:
		return nil
	}
}

func (c *Client) handlePacket(sess *session, pkt Packet) error {
	if pkt.Namespace != DefaultNamespace {
		return nil
	}
	switch pkt.Type {
	case PacketEvent:
		c.dispatch(sess, pkt)
	case PacketDisconnect:
		return errServerDisconnect
	case PacketConnectError:
		return errors.Errorf("namespace connect rejected: %s", pkt.Data)
	case PacketBinaryEvent, PacketBinaryAck:
		c.observer.OnError(ErrBinaryUnsupported)
	}
	return nil
}

func (c *Client) dispatch(sess *session, pkt Packet) {
	name, args, err := pkt.Event()
	if err != nil {
		c.observer.OnError(err)
		return
	}
	ev := &Event{Name: name, Args: args, ackID: pkt.ID, sess: sess}

	c.mu.Lock()
	if _, ok := c.handlers[name]; !ok || c.state == StateClosed {
		c.mu.Unlock()
		c.log.WithField("event", name).Debug("no handler, event dropped")
		return
	}
	q, ok := c.queues[name]
	if !ok {
		q = newEventQueue()
		c.queues[name] = q
		c.wg.Add(1)
		go c.worker(name, q)
	}
	c.mu.Unlock()

	// The read loop never waits on a handler.
	q.push(ev)
}

func (c *Client) worker(name string, q *eventQueue) {
	defer c.wg.Done()
	for {
		ev, ok := q.pop()
		if !ok {
			select {
			case <-c.ctx.Done():
				return
			case <-q.ready:
			}
			continue
		}
		if c.ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		h := c.handlers[name]
		// The server redelivers unacknowledged events on the next session.
		stale := ev.AckRequested() && ev.sess != c.sess
		c.mu.Unlock()
		if stale {
			c.log.WithField("event", name).Debug("session ended before delivery, event dropped")
			continue
		}
		if h != nil {
			c.invoke(h, ev)
		}
	}
}

func (c *Client) invoke(h Handler, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			c.observer.OnError(fmt.Errorf("handler for %q panicked: %v", ev.Name, r))
		}
	}()
	h(c.ctx, ev)
}

// eventQueue is an unbounded FIFO with a wakeup signal for its worker.
type eventQueue struct {
	mu     sync.Mutex
	events []*Event
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev *Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return ev, true
}

type session struct {
	conn         *websocket.Conn
	sid          string
	pingInterval time.Duration
	pingTimeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, hs Handshake) *session {
	return &session{
		conn:         conn,
		pingInterval: time.Duration(hs.PingInterval) * time.Millisecond,
		pingTimeout:  time.Duration(hs.PingTimeout) * time.Millisecond,
	}
}

// readTimeout is how long the server may stay silent before the
// connection is considered dead. Zero disables the deadline.
func (s *session) readTimeout() time.Duration {
	if s.pingInterval <= 0 {
		return 0
	}
	return s.pingInterval + s.pingTimeout
}

func (s *session) write(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (s *session) shutdown(graceful bool) error {
	var err error
	s.closeOnce.Do(func() {
		if graceful {
			_ = s.write(DisconnectPacket().Encode())
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		err = s.conn.Close()
	})
	return err
}

func endpointURL(base string, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse socket url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("socket url has no host")
	}
	u.Path = "/" + strings.Trim(path, "/") + "/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}
