package livechannel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineNoop    byte = '6'
)

// Socket.IO v5 protocol packet types, carried inside engine messages.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
)

var errEmptyFrame = errors.New("empty frame")

// frame is one decoded websocket text message.
type frame struct {
	engine byte
	// socket is only set when engine == engineMessage.
	socket  byte
	payload []byte
}

// openPacket is the Engine.IO handshake sent by the server.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func parseFrame(data []byte) (frame, error) {
	if len(data) == 0 {
		return frame{}, errEmptyFrame
	}

	f := frame{engine: data[0], payload: data[1:]}

	switch f.engine {
	case engineOpen, engineClose, enginePing, enginePong, engineNoop:
		return f, nil
	case engineMessage:
		if len(f.payload) == 0 {
			return frame{}, fmt.Errorf("message frame without socket packet")
		}

		f.socket = f.payload[0]
		f.payload = stripNamespace(f.payload[1:])

		return f, nil
	default:
		return frame{}, fmt.Errorf("unknown engine packet type %q", f.engine)
	}
}

// stripNamespace drops an optional "/nsp," prefix and a numeric ack id.
func stripNamespace(p []byte) []byte {
	if len(p) > 0 && p[0] == '/' {
		if i := bytes.IndexByte(p, ','); i >= 0 {
			p = p[i+1:]
		} else {
			return nil
		}
	}

	i := 0
	for i < len(p) && p[i] >= '0' && p[i] <= '9' {
		i++
	}

	return p[i:]
}

// encodeEvent builds a "42[...]" event frame.
func encodeEvent(name string, args ...any) ([]byte, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)

	body, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", name, err)
	}

	return append([]byte{engineMessage, socketEvent}, body...), nil
}

// decodeEventPayload splits an event payload into its name and first argument.
func decodeEventPayload(payload []byte) (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event payload: %w", err)
	}

	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event payload has no name")
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}

	if len(parts) == 1 {
		return name, nil, nil
	}

	return name, parts[1], nil
}

// connectErrorMessage extracts the reason from a "44{...}" packet.
func connectErrorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		return body.Message
	}

	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}

	return "connection rejected"
}
