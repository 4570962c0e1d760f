package chiefpaytest

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ChiefPay/chiefpay-go/internal/socketio"
	"github.com/ChiefPay/chiefpay-go/models"
)

type conn struct {
	ws  *websocket.Conn
	sid string

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) write(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) heartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(string(socketio.EnginePing)); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveSocket(ctx *gin.Context) {
	if ctx.Query("EIO") != "4" || ctx.Query("transport") != "websocket" {
		ctx.JSON(http.StatusBadRequest, models.NewError("unsupported transport"))
		return
	}
	ws, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}
	s.serveConn(&conn{ws: ws, sid: uuid.NewString(), done: make(chan struct{})})
}

func (s *Server) serveConn(c *conn) {
	defer s.forget(c)

	s.mu.Lock()
	interval, timeout := s.pingInterval, s.pingTimeout
	s.mu.Unlock()

	open, err := socketio.OpenFrame(socketio.Handshake{
		SID:          c.sid,
		Upgrades:     []string{},
		PingInterval: interval.Milliseconds(),
		PingTimeout:  timeout.Milliseconds(),
		MaxPayload:   1000000,
	})
	if err != nil || c.write(open) != nil {
		return
	}
	go c.heartbeat(interval)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case socketio.EngineClose:
			return
		case socketio.EngineMessage:
			pkt, err := socketio.DecodePacket(string(data[1:]))
			if err != nil {
				return
			}
			if err := s.handlePacket(c, pkt); err != nil {
				return
			}
		}
	}
}

func (s *Server) handlePacket(c *conn, pkt socketio.Packet) error {
	switch pkt.Type {
	case socketio.PacketConnect:
		s.mu.Lock()
		reject := s.rejectNamespace
		s.mu.Unlock()
		if reject {
			msg, _ := json.Marshal(map[string]string{"message": "not authorized"})
			return c.write(socketio.Packet{Type: socketio.PacketConnectError, Data: msg}.Encode())
		}

		// Registered before the ack so an Emit right after the client's
		// Connect returns reaches it.
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		ack, _ := json.Marshal(map[string]string{"sid": c.sid})
		if err := c.write(socketio.Packet{Type: socketio.PacketConnect, Data: ack}.Encode()); err != nil {
			return err
		}
		select {
		case s.joined <- c.sid:
		default:
		}
	case socketio.PacketDisconnect:
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	case socketio.PacketAck:
		if pkt.ID == nil {
			return nil
		}
		select {
		case s.acks <- Ack{ID: *pkt.ID, Args: pkt.Data}:
		case <-s.closed:
		}
	}
	return nil
}

func (s *Server) forget(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) joinedConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Emit sends event to every joined client and returns how many it
// reached. With withAck each send gets its own ack id.
func (s *Server) Emit(event string, withAck bool, args ...any) (int, error) {
	sent := 0
	for _, c := range s.joinedConns() {
		var id *uint64
		if withAck {
			s.mu.Lock()
			s.nextAckID++
			next := s.nextAckID
			s.mu.Unlock()
			id = &next
		}
		pkt, err := socketio.EventPacket(event, id, args...)
		if err != nil {
			return sent, err
		}
		if err := c.write(pkt.Encode()); err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

// EmitRaw writes frame unchanged to every joined client.
func (s *Server) EmitRaw(frame string) int {
	sent := 0
	for _, c := range s.joinedConns() {
		if c.write(frame) == nil {
			sent++
		}
	}
	return sent
}

// Acks delivers acknowledgements in the order they arrived.
func (s *Server) Acks() <-chan Ack {
	return s.acks
}

// Joined delivers the session id of every client that joined the
// default namespace.
func (s *Server) Joined() <-chan string {
	return s.joined
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections closes every socket without a Socket.IO disconnect,
// as a network failure would.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*conn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// DisconnectClients sends a namespace DISCONNECT to every joined client.
func (s *Server) DisconnectClients() {
	for _, c := range s.joinedConns() {
		_ = c.write(socketio.DisconnectPacket().Encode())
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}
}
