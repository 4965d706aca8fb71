// Package event defines the normalized interaction record produced by the
// listener for every inbound HTTP request or protocol message.
package event

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMalformed is returned when an Event is missing a required field.
var ErrMalformed = errors.New("malformed event")

// Transport identifies how a visitor reached the honeypot.
type Transport int

const (
	// TransportHTTP is a plain request/response interaction.
	TransportHTTP Transport = iota
	// TransportProtocol is a structured tool-invocation message (MCP JSON-RPC).
	TransportProtocol
)

// String returns the lowercase name used in logs, metrics and storage.
func (t Transport) String() string {
	switch t {
	case TransportHTTP:
		return "http"
	case TransportProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// Event is one observed interaction. It is never modified after it has been
// recorded.
type Event struct {
	// Key is the visitor identity, derived by the listener.
	Key       string      `json:"key"`
	Timestamp time.Time   `json:"timestamp"`
	Method    string      `json:"method"`
	// Path is the request path for HTTP events or the JSON-RPC method name
	// for protocol events.
	Path       string      `json:"path"`
	Headers    http.Header `json:"headers,omitempty"`
	Body       string      `json:"body,omitempty"`
	Transport  Transport   `json:"transport"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
}

// Validate reports whether e carries every field the tracker needs.
func (e Event) Validate() error {
	switch {
	case e.Key == "":
		return fmt.Errorf("%w: missing visitor key", ErrMalformed)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrMalformed)
	case e.Path == "":
		return fmt.Errorf("%w: missing path", ErrMalformed)
	case e.Transport != TransportHTTP && e.Transport != TransportProtocol:
		return fmt.Errorf("%w: unknown transport %d", ErrMalformed, int(e.Transport))
	}
	return nil
}

// IsProtocol reports whether the event arrived over the protocol-native channel.
func (e Event) IsProtocol() bool {
	return e.Transport == TransportProtocol
}
