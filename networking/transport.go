package networking

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// Listen binds a new listening socket on addr
func Listen(addr string) (net.Listener, error) {
	lc := new(net.ListenConfig)
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return l, nil
}

// Accept waits for the next control connection
func Accept(l net.Listener) (*Conn, error) {
	conn, err := l.Accept()
	if err != nil {
		return nil, err
	}
	setNoDelay(conn)
	return NewConn(conn), nil
}

// Dialer opens outbound connections
type Dialer struct {
	Timeout time.Duration // Zero means no timeout
	DSCP    int           // Zero leaves the OS default
}

// Dial connects to addr
func (d *Dialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	dial := &net.Dialer{Timeout: d.Timeout}
	conn, err := dial.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	setNoDelay(conn)
	if d.DSCP > 0 {
		// Best effort. Some platforms ignore the value.
		SetDSCP(conn, d.DSCP)
	}
	return NewConn(conn), nil
}

// SetDSCP sets the DSCP bits of the IP TOS field on conn
func SetDSCP(conn net.Conn, dscp int) error {
	return ipv4.NewConn(conn).SetTOS(dscp << 2)
}

// setNoDelay sets TCP_NODELAY to always immediately send.
func setNoDelay(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
}
