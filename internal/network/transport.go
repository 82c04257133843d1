// Package network defines the Transport boundary between the simulation
// and the wire: a minimal connection-oriented interface plus a thin
// reference implementation over kcp-go. Per spec.md §1, the concrete
// transport is out of scope beyond "a documented interface" — everything
// in this package is a reference binding, not a hardened production
// listener.
package network

import (
	"context"
	"io"
)

// Conn is one client connection: a framed byte stream. Framing (the
// protocol.Encode/Decode length-implicit layout) is the caller's
// responsibility; Conn itself is just transport.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() string
}

// Listener accepts incoming client connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() string
}

// Transport is the boundary the simulation depends on: listen for clients,
// or dial a server. Server and client command queues (see the orchestrator
// package) are fed from Conn.Read on a dedicated goroutine per connection
// that never touches world state directly — it only enqueues decoded
// messages (spec.md §5 concurrency domains).
type Transport interface {
	Listen(ctx context.Context, addr string) (Listener, error)
	Dial(ctx context.Context, addr string) (Conn, error)
}
