package comms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"go_ftserve/constants"
	"go_ftserve/fileio"
	"go_ftserve/logger"
	"go_ftserve/networking"
	"go_ftserve/networking/status"
)

// Options configures a Client
type Options struct {
	DataBind       string        // Address the data listener binds, empty for all interfaces
	DataPort       int           // Port the server connects back to, 0 picks a free one
	ChunkSize      int           // Bytes per data connection read
	DSCP           int           // DSCP marking of data connections
	ConnectTimeout time.Duration // Control connection dial timeout
	AcceptTimeout  time.Duration // How long to wait for the server's data connection
	ReadTimeout    time.Duration // Bound on every control and data read
}

// Client speaks the control protocol and accepts the server's data connections
type Client struct {
	opts    Options
	factory fileio.IOFactory
	logger  *slog.Logger
	ctrl    *networking.Conn
	dataL   net.Listener
}

// New creates a client. Zero option values are replaced with defaults.
func New(opts Options, log *slog.Logger) *Client {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = constants.DEFAULT_CHUNK_SIZE
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = constants.DEFAULT_CONNECT_TIMEOUT
	}
	if log == nil {
		log = logger.L()
	}
	return &Client{
		opts:    opts,
		factory: new(fileio.BufferedFactory),
		logger:  log,
	}
}

// Connect dials the control port, waits for the greeting and opens the data listener
func (c *Client) Connect(ctx context.Context, addr string) error {
	dataL, err := networking.Listen(net.JoinHostPort(c.opts.DataBind, strconv.Itoa(c.opts.DataPort)))
	if err != nil {
		return err
	}

	dialer := networking.Dialer{Timeout: c.opts.ConnectTimeout}
	ctrl, err := dialer.Dial(ctx, addr)
	if err != nil {
		dataL.Close()
		return err
	}
	ctrl.ReadTimeout = c.opts.ReadTimeout

	code, err := ctrl.RecvStatus()
	if err == nil {
		err = expect(code, status.Welcome)
	}
	if err != nil {
		ctrl.Close()
		dataL.Close()
		return fmt.Errorf("no greeting from %s: %w", addr, err)
	}

	c.ctrl = ctrl
	c.dataL = dataL
	c.logger.Debug("connected", logger.KeyListenAddr, addr, logger.KeyDataAddr, dataL.Addr().String())
	return nil
}

// DataPort returns the port the data listener is bound to
func (c *Client) DataPort() int {
	if c.dataL == nil {
		return c.opts.DataPort
	}
	return c.dataL.Addr().(*net.TCPAddr).Port
}

// Login sends the username and password
func (c *Client) Login(user, pass string) error {
	if c.ctrl == nil {
		return ErrNotConnected
	}
	if err := c.ctrl.SendMessage(string(networking.VerbUser) + " " + user); err != nil {
		return err
	}
	if err := c.expect(status.NeedPassword); err != nil {
		return err
	}
	if err := c.ctrl.SendMessage(string(networking.VerbPass) + " " + pass); err != nil {
		return err
	}
	return c.expect(status.LoginOK)
}

// List writes the listing of the remote working directory to w
func (c *Client) List(w io.Writer) error {
	return c.ListDir("", w)
}

// ListDir writes the listing of dir to w
func (c *Client) ListDir(dir string, w io.Writer) error {
	data, err := c.command(networking.Command{Verb: networking.VerbList, Arg: dir})
	if err != nil {
		return err
	}
	defer data.Close()
	return c.receiveListing(data, w)
}

// PrintDir returns the remote working directory
func (c *Client) PrintDir() (string, error) {
	data, err := c.command(networking.Command{Verb: networking.VerbPrintDir})
	if err != nil {
		return "", err
	}
	defer data.Close()

	var sb strings.Builder
	if err := c.receiveListing(data, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ChangeDir asks the server to change the working directory.
// The server does not report whether it succeeded.
func (c *Client) ChangeDir(dir string) error {
	data, err := c.command(networking.Command{Verb: networking.VerbChangeDir, Arg: dir})
	if err != nil {
		return err
	}
	defer data.Close()
	// Wait for the server to close the unused data connection.
	_, err = c.receive(data, io.Discard)
	return err
}

// Get downloads remote into the local file and returns the bytes received
func (c *Client) Get(remote, local string) (int64, error) {
	data, err := c.command(networking.Command{Verb: networking.VerbGet, Arg: remote})
	if err != nil {
		return 0, err
	}
	defer data.Close()

	if err := c.expect(status.FileOK); err != nil {
		return 0, err
	}

	writer := c.factory.NewWriter()
	if err := writer.New(local, constants.DEFAULT_FILE_CHUNK_SIZE*1024, constants.FILE_WRITE_QUEUE, fileio.ChecksumNone); err != nil {
		// Keep the protocol in step before reporting.
		c.receive(data, io.Discard)
		c.expect(status.TransferComplete)
		return 0, err
	}

	chunks, done := writer.StartWriting()
	_, recvErr := c.receive(data, chanWriter(chunks))
	close(chunks)
	res := <-done
	if recvErr != nil {
		return res.Bytes, recvErr
	}
	if res.Err != nil {
		return res.Bytes, res.Err
	}
	return res.Bytes, c.expect(status.TransferComplete)
}

// Put uploads the local file as remote and returns the bytes sent
func (c *Client) Put(local, remote string) (int64, error) {
	data, err := c.command(networking.Command{Verb: networking.VerbPut, Arg: remote})
	if err != nil {
		return 0, err
	}
	defer data.Close()

	reader := c.factory.NewReader()
	if err := reader.New(local, c.opts.ChunkSize, constants.FILE_READ_QUEUE); err != nil {
		if sendErr := c.ctrl.SendStatus(status.Unavailable); sendErr != nil {
			return 0, sendErr
		}
		return 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks := reader.StartReading(ctx)

	if err := c.ctrl.SendStatus(status.FileOK); err != nil {
		return 0, err
	}

	var sent int64
	for chunk := range chunks {
		if err := data.SendBytes(chunk); err != nil {
			return sent, err
		}
		sent += int64(len(chunk))
	}
	if err := reader.Err(); err != nil {
		c.logger.Warn("local read failed", logger.KeyPath, local, logger.Err(err))
	}
	data.Close()

	return sent, c.ctrl.SendStatus(status.TransferComplete)
}

// Quit ends the session and closes the client
func (c *Client) Quit() error {
	if c.ctrl == nil {
		return ErrNotConnected
	}
	defer c.Close()
	if err := c.ctrl.SendMessage(string(networking.VerbQuit)); err != nil {
		return err
	}
	return c.expect(status.Goodbye)
}

// Close closes the control connection and the data listener
func (c *Client) Close() error {
	var err error
	if c.ctrl != nil {
		err = c.ctrl.Close()
	}
	if c.dataL != nil {
		c.dataL.Close()
	}
	return err
}

// command sends cmd, expects 200 and completes the data channel handshake
func (c *Client) command(cmd networking.Command) (*networking.Conn, error) {
	if c.ctrl == nil {
		return nil, ErrNotConnected
	}
	c.logger.Debug("sending command", logger.KeyCommand, cmd.String())
	if err := c.ctrl.SendMessage(cmd.String()); err != nil {
		return nil, err
	}
	if err := c.expect(status.CommandOK); err != nil {
		return nil, err
	}
	if err := c.ctrl.SendReady(); err != nil {
		return nil, err
	}
	return c.acceptData()
}

// acceptData waits for the server to connect to the data listener
func (c *Client) acceptData() (*networking.Conn, error) {
	if tl, ok := c.dataL.(*net.TCPListener); ok && c.opts.AcceptTimeout > 0 {
		tl.SetDeadline(time.Now().Add(c.opts.AcceptTimeout))
	}
	data, err := networking.Accept(c.dataL)
	if err != nil {
		return nil, &networking.DataConnError{Addr: c.dataL.Addr().String(), Err: err}
	}
	if c.opts.DSCP > 0 {
		networking.SetDSCP(data.NetConn(), c.opts.DSCP)
	}
	data.ReadTimeout = c.opts.ReadTimeout
	return data, nil
}

// receiveListing handles the reply sequence of SLS and SPWD
func (c *Client) receiveListing(data *networking.Conn, w io.Writer) error {
	if err := c.expect(status.Starting); err != nil {
		return err
	}
	if _, err := c.receive(data, w); err != nil {
		return err
	}
	return c.expect(status.TransferComplete)
}

// receive copies the data connection to w until the server closes it
func (c *Client) receive(data *networking.Conn, w io.Writer) (int64, error) {
	var total int64
	for {
		buf := make([]byte, c.opts.ChunkSize)
		n, err := data.RecvBytes(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// chanWriter hands every write to a file writer queue. Callers must not reuse p.
type chanWriter chan<- []byte

func (w chanWriter) Write(p []byte) (int, error) {
	w <- p
	return len(p), nil
}

func (c *Client) expect(want status.Code) error {
	got, err := c.ctrl.RecvStatus()
	if err != nil {
		return err
	}
	return expect(got, want)
}
