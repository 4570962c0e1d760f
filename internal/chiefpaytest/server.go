// Package chiefpaytest runs an in-process stand-in for the ChiefPay API:
// the JSON endpoints and the Socket.IO channel.
package chiefpaytest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ChiefPay/chiefpay-go/internal/socketio"
	"github.com/ChiefPay/chiefpay-go/models"
	"github.com/ChiefPay/chiefpay-go/providers"
)

type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Ack is an acknowledgement a client sent for an emitted event.
type Ack struct {
	ID   uint64
	Args json.RawMessage
}

type Server struct {
	URL    string
	APIKey string

	srv      *httptest.Server
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu              sync.Mutex
	responses       map[string]any
	failures        map[string][]int
	requests        []RecordedRequest
	handshakes      []http.Header
	conns           map[*conn]struct{}
	nextAckID       uint64
	rejectNamespace bool
	pingInterval    time.Duration
	pingTimeout     time.Duration

	acks      chan Ack
	joined    chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func NewServer(apiKey string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		APIKey:       apiKey,
		router:       gin.New(),
		responses:    make(map[string]any),
		failures:     make(map[string][]int),
		conns:        make(map[*conn]struct{}),
		pingInterval: 25 * time.Second,
		pingTimeout:  20 * time.Second,
		acks:         make(chan Ack, 64),
		joined:       make(chan string, 16),
		closed:       make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	api := s.router.Group("/v1", s.recordRequest(), s.requireAPIKey())
	api.GET("/rates", s.serveAPI)
	api.GET("/invoice", s.serveAPI)
	api.POST("/invoice", s.serveAPI)
	api.DELETE("/invoice", s.serveAPI)
	api.PATCH("/invoice", s.serveAPI)
	api.GET("/history/invoices", s.serveAPI)
	api.GET("/history/transactions", s.serveAPI)
	api.GET("/wallet", s.serveAPI)
	api.POST("/wallet", s.serveAPI)

	s.router.GET(socketio.DefaultPath+"/", s.recordHandshake(), s.requireAPIKey(), s.serveSocket)

	s.srv = httptest.NewServer(s.router)
	s.URL = s.srv.URL
	return s
}

// Respond makes method path answer 200 with data in the success envelope.
func (s *Server) Respond(method, path string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+path] = data
}

// FailNext queues error statuses that method path answers with before
// falling back to its configured response.
func (s *Server) FailNext(method, path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], statuses...)
}

func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Handshakes returns the headers of every socket upgrade request.
func (s *Server) Handshakes() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.handshakes...)
}

// SetPing sets the heartbeat announced to clients that connect afterwards.
func (s *Server) SetPing(interval, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingInterval, s.pingTimeout = interval, timeout
}

// RejectNamespace makes namespace connects fail with a CONNECT_ERROR.
func (s *Server) RejectNamespace(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNamespace = reject
}

func (s *Server) recordRequest() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		body, _ := io.ReadAll(ctx.Request.Body)
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: ctx.Request.Method,
			Path:   ctx.Request.URL.Path,
			Query:  ctx.Request.URL.Query(),
			Header: ctx.Request.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		ctx.Next()
	}
}

func (s *Server) recordHandshake() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s.mu.Lock()
		s.handshakes = append(s.handshakes, ctx.Request.Header.Clone())
		s.mu.Unlock()
		ctx.Next()
	}
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader(providers.APIKeyHeader) != s.APIKey {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.NewError("invalid api key"))
			return
		}
		ctx.Next()
	}
}

func (s *Server) serveAPI(ctx *gin.Context) {
	key := ctx.Request.Method + " " + ctx.Request.URL.Path

	s.mu.Lock()
	var status int
	if queued := s.failures[key]; len(queued) > 0 {
		status, s.failures[key] = queued[0], queued[1:]
	}
	data, ok := s.responses[key]
	s.mu.Unlock()

	switch {
	case status != 0:
		ctx.JSON(status, models.NewError(http.StatusText(status)))
	case !ok:
		ctx.JSON(http.StatusNotFound, models.NewError("not found"))
	default:
		ctx.JSON(http.StatusOK, models.NewSuccess(data))
	}
}

func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.DropConnections()
		s.srv.Close()
	})
}

func (s *Server) String() string {
	return s.URL
}
