package socketio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyServer accepts one session, drops it right after the namespace is
// joined and rejects every later handshake.
func flakyServer(t *testing.T) *httptest.Server {
	t.Helper()
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) > 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		open, err := OpenFrame(Handshake{SID: "engine-1"})
		if err != nil {
			return
		}
		if conn.WriteMessage(websocket.TextMessage, []byte(open)) != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"socket-1"}`))
	}))
}

func TestClient_FailedReconnectReleasesRunContext(t *testing.T) {
	srv := flakyServer(t)
	defer srv.Close()

	errs := make(chan error, 4)
	c, err := NewClient(Config{
		URL:                  srv.URL,
		ConnectionTimeout:    2 * time.Second,
		ReconnectionAttempts: 1,
		ReconnectionDelay:    10 * time.Millisecond,
		Observer:             ObserverFuncs{Error: func(err error) { errs <- err }},
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.state == StateDisconnected && c.runCancel == nil
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case err := <-errs:
		var connErr *ConnectionError
		assert.ErrorAs(t, err, &connErr)
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect failure not reported")
	}
}

func TestEventQueue_Unbounded(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 500; i++ {
		q.push(&Event{Name: "rates"})
	}
	select {
	case <-q.ready:
	default:
		t.Fatal("push did not signal")
	}

	n := 0
	for {
		if _, ok := q.pop(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 500, n)
}
