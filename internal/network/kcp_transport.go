package network

import (
	"context"
	"fmt"
	"net"

	"github.com/xtaci/kcp-go/v5"
)

// KCPTransport is the reference Transport implementation over kcp-go's
// reliable UDP session layer. It is intentionally thin: no FEC tuning, no
// crypto block cipher — a production deployment is expected to configure
// kcp-go directly and satisfy the Transport interface itself (spec.md §1:
// the concrete transport library is out of scope beyond this documented
// interface).
type KCPTransport struct{}

// NewKCPTransport returns a KCPTransport.
func NewKCPTransport() *KCPTransport { return &KCPTransport{} }

func (t *KCPTransport) Listen(ctx context.Context, addr string) (Listener, error) {
	ln, err := kcp.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("network: kcp listen %s: %w", addr, err)
	}
	return &kcpListener{ln: ln}, nil
}

func (t *KCPTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	sess, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("network: kcp dial %s: %w", addr, err)
	}
	return &kcpConn{sess: sess}, nil
}

type kcpListener struct {
	ln net.Listener
}

func (l *kcpListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return &kcpConn{sess: res.conn}, nil
	}
}

func (l *kcpListener) Close() error  { return l.ln.Close() }
func (l *kcpListener) Addr() string  { return l.ln.Addr().String() }

type kcpConn struct {
	sess net.Conn
}

func (c *kcpConn) Read(p []byte) (int, error)  { return c.sess.Read(p) }
func (c *kcpConn) Write(p []byte) (int, error) { return c.sess.Write(p) }
func (c *kcpConn) Close() error                { return c.sess.Close() }
func (c *kcpConn) RemoteAddr() string          { return c.sess.RemoteAddr().String() }
