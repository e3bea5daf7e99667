package networking

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"go_ftserve/constants"
)

// Conn is an established control or data connection. All socket I/O goes through it.
type Conn struct {
	conn      net.Conn
	reader    *bufio.Reader
	closeOnce sync.Once
	closeErr  error

	// ReadTimeout bounds every blocking read. Zero means no deadline.
	ReadTimeout time.Duration
	// WriteTimeout bounds every write. Zero means no deadline.
	WriteTimeout time.Duration
}

// NewConn wraps an established connection
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, constants.MAX_MESSAGE_SIZE*2),
	}
}

// SendBytes writes the whole buffer to the connection
func (c *Conn) SendBytes(buf []byte) error {
	c.armWrite()
	_, err := c.conn.Write(buf)
	return err
}

// RecvBytes reads at most len(buf) bytes. (0, io.EOF) means the peer closed the connection.
func (c *Conn) RecvBytes(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	c.armRead()
	n, err := c.reader.Read(buf)
	if n == 0 && err == nil {
		err = io.ErrNoProgress
	}
	return n, err
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteIP returns the IP address of the peer
func (c *Conn) RemoteIP() net.IP {
	switch addr := c.conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		return addr.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil
		}
		return net.ParseIP(host)
	}
}

// RemoteAddr returns the peer address as text
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// NetConn returns the underlying connection
func (c *Conn) NetConn() net.Conn {
	return c.conn
}

func (c *Conn) armRead() {
	if c.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	}
}

func (c *Conn) armWrite() {
	if c.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
}
