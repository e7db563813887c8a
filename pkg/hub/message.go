// Package hub provides a thread-safe websocket broadcast hub using the
// channel-based fan-out pattern. The web server uses it to stream
// conversation turns to connected dashboard clients.
package hub

// Message is a payload queued for broadcast to clients.
type Message struct {
	Data []byte
}

// NewMessage wraps pre-encoded bytes for broadcast.
func NewMessage(data []byte) Message {
	return Message{Data: data}
}
