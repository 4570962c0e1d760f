package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket_Encode(t *testing.T) {
	id := uint64(12)

	assert.Equal(t, "40", ConnectPacket().Encode())
	assert.Equal(t, "41", DisconnectPacket().Encode())

	ev, err := EventPacket("notification", &id, map[string]string{"type": "invoice"})
	require.NoError(t, err)
	assert.Equal(t, `4212["notification",{"type":"invoice"}]`, ev.Encode())

	ev, err = EventPacket("rates", nil)
	require.NoError(t, err)
	assert.Equal(t, `42["rates"]`, ev.Encode())

	ack, err := AckPacket(7, map[string]string{"status": "success"})
	require.NoError(t, err)
	assert.Equal(t, `437[{"status":"success"}]`, ack.Encode())

	ack, err = AckPacket(8)
	require.NoError(t, err)
	assert.Equal(t, `438[]`, ack.Encode())

	custom := Packet{Type: PacketEvent, Namespace: "/admin", Data: []byte(`["x"]`)}
	assert.Equal(t, `42/admin,["x"]`, custom.Encode())
}

func TestDecodePacket(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		typ       PacketType
		namespace string
		id        *uint64
		data      string
	}{
		{name: "connect", in: "0", typ: PacketConnect, namespace: "/"},
		{name: "connect ack", in: `0{"sid":"abc"}`, typ: PacketConnect, namespace: "/", data: `{"sid":"abc"}`},
		{name: "event", in: `2["rates",[]]`, typ: PacketEvent, namespace: "/", data: `["rates",[]]`},
		{name: "event with id", in: `215["notification",{}]`, typ: PacketEvent, namespace: "/", id: ptr(15), data: `["notification",{}]`},
		{name: "namespace", in: `2/admin,3["x"]`, typ: PacketEvent, namespace: "/admin", id: ptr(3), data: `["x"]`},
		{name: "namespace only", in: `0/admin`, typ: PacketConnect, namespace: "/admin"},
		{name: "ack", in: `34[{"status":"success"}]`, typ: PacketAck, namespace: "/", id: ptr(4), data: `[{"status":"success"}]`},
		{name: "binary", in: `51-["upload",{"_placeholder":true,"num":0}]`, typ: PacketBinaryEvent, namespace: "/", data: `["upload",{"_placeholder":true,"num":0}]`},
		{name: "disconnect", in: "1", typ: PacketDisconnect, namespace: "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := DecodePacket(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, p.Type)
			assert.Equal(t, tc.namespace, p.Namespace)
			assert.Equal(t, tc.id, p.ID)
			assert.Equal(t, tc.data, string(p.Data))
		})
	}
}

func TestDecodePacket_Invalid(t *testing.T) {
	for _, in := range []string{"", "9", `2["rates"`, "5[]"} {
		_, err := DecodePacket(in)
		assert.Error(t, err, in)
	}
}

func TestPacket_Event(t *testing.T) {
	p, err := DecodePacket(`2["notification",{"type":"invoice"},42]`)
	require.NoError(t, err)

	name, args, err := p.Event()
	require.NoError(t, err)
	assert.Equal(t, "notification", name)
	assert.JSONEq(t, `[{"type":"invoice"},42]`, string(args))

	p, err = DecodePacket(`2["rates"]`)
	require.NoError(t, err)
	name, args, err = p.Event()
	require.NoError(t, err)
	assert.Equal(t, "rates", name)
	assert.JSONEq(t, `[]`, string(args))

	for _, in := range []string{`2[]`, `2[1]`, `2{"a":1}`} {
		p, err := DecodePacket(in)
		require.NoError(t, err)
		_, _, err = p.Event()
		assert.Error(t, err, in)
	}
}

func TestOpenFrame(t *testing.T) {
	frame, err := OpenFrame(Handshake{SID: "s1", Upgrades: []string{}, PingInterval: 25000, PingTimeout: 20000, MaxPayload: 1000000})
	require.NoError(t, err)
	assert.Equal(t, `0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, frame)
}

func TestPacketType_String(t *testing.T) {
	assert.Equal(t, "EVENT", PacketEvent.String())
	assert.Equal(t, "CONNECT_ERROR", PacketConnectError.String())
	assert.Equal(t, "UNKNOWN(9)", PacketType(9).String())
}

func TestEndpointURL(t *testing.T) {
	cases := map[string]string{
		"https://api.chiefpay.org":       "wss://api.chiefpay.org/socket.io/?EIO=4&transport=websocket",
		"http://127.0.0.1:8080":          "ws://127.0.0.1:8080/socket.io/?EIO=4&transport=websocket",
		"wss://api.chiefpay.org/#frag":   "wss://api.chiefpay.org/socket.io/?EIO=4&transport=websocket",
		"https://api.chiefpay.org?x=yes": "wss://api.chiefpay.org/socket.io/?EIO=4&transport=websocket",
	}
	for in, want := range cases {
		got, err := endpointURL(in, DefaultPath)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := endpointURL("ftp://api.chiefpay.org", DefaultPath)
	assert.Error(t, err)
	_, err = endpointURL("https://", DefaultPath)
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func ptr(v uint64) *uint64 {
	return &v
}
