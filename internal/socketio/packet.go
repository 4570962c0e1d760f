// Package socketio implements the client side of Socket.IO v4 over the
// Engine.IO v4 WebSocket transport. Only what a push-notification
// consumer needs is covered: the default namespace, text events,
// acknowledgements, heartbeats and reconnects.
package socketio

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Engine.IO packet types, sent as the first byte of every frame.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

const DefaultNamespace = "/"

type PacketType byte

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketDisconnect:
		return "DISCONNECT"
	case PacketEvent:
		return "EVENT"
	case PacketAck:
		return "ACK"
	case PacketConnectError:
		return "CONNECT_ERROR"
	case PacketBinaryEvent:
		return "BINARY_EVENT"
	case PacketBinaryAck:
		return "BINARY_ACK"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

// Handshake is the payload of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// Packet is a Socket.IO packet carried by an Engine.IO message.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        *uint64
	Data      json.RawMessage
}

// Encode returns the full Engine.IO frame for p.
func (p Packet) Encode() string {
	var b strings.Builder
	b.WriteByte(EngineMessage)
	b.WriteByte('0' + byte(p.Type))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID != nil {
		b.WriteString(strconv.FormatUint(*p.ID, 10))
	}
	b.Write(p.Data)
	return b.String()
}

// DecodePacket parses the Socket.IO part of a message frame, that is the
// frame without its leading Engine.IO type byte.
func DecodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, errors.New("empty socket.io packet")
	}
	t := s[0] - '0'
	if t > byte(PacketBinaryAck) {
		return Packet{}, errors.Errorf("unknown socket.io packet type %q", s[0])
	}
	p := Packet{Type: PacketType(t), Namespace: DefaultNamespace}
	rest := s[1:]

	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		i := strings.IndexByte(rest, '-')
		if i < 0 {
			return Packet{}, errors.New("binary packet without attachment count")
		}
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "/") {
		if i := strings.IndexByte(rest, ','); i < 0 {
			p.Namespace, rest = rest, ""
		} else {
			p.Namespace, rest = rest[:i], rest[i+1:]
		}
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.ParseUint(rest[:i], 10, 64)
		if err != nil {
			return Packet{}, errors.Wrap(err, "parse ack id")
		}
		p.ID = &id
		rest = rest[i:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return Packet{}, errors.Errorf("invalid %s payload", p.Type)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// Event splits an EVENT payload into its name and the JSON array of the
// remaining arguments.
func (p Packet) Event() (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil {
		return "", nil, errors.Wrap(err, "decode event packet")
	}
	if len(parts) == 0 {
		return "", nil, errors.New("event packet without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, errors.Wrap(err, "decode event name")
	}
	args, err := json.Marshal(parts[1:])
	if err != nil {
		return "", nil, errors.Wrap(err, "encode event arguments")
	}
	return name, args, nil
}

func ConnectPacket() Packet {
	return Packet{Type: PacketConnect, Namespace: DefaultNamespace}
}

func DisconnectPacket() Packet {
	return Packet{Type: PacketDisconnect, Namespace: DefaultNamespace}
}

// EventPacket builds an EVENT; id is nil when no acknowledgement is wanted.
func EventPacket(name string, id *uint64, args ...any) (Packet, error) {
	data, err := json.Marshal(append([]any{name}, args...))
	if err != nil {
		return Packet{}, errors.Wrap(err, "encode event")
	}
	return Packet{Type: PacketEvent, Namespace: DefaultNamespace, ID: id, Data: data}, nil
}

func AckPacket(id uint64, args ...any) (Packet, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return Packet{}, errors.Wrap(err, "encode ack")
	}
	return Packet{Type: PacketAck, Namespace: DefaultNamespace, ID: &id, Data: data}, nil
}

func OpenFrame(h Handshake) (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(EngineOpen) + string(data), nil
}
