package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go_ftserve/auth"
	"go_ftserve/fileio"
	"go_ftserve/listing"
	"go_ftserve/networking"
	"go_ftserve/networking/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testListing = "-rw-r--r-- 1 ftp ftp 5 Jan  1 00:00 a.txt\n"

// testClient drives a session over real loopback sockets.
type testClient struct {
	t     *testing.T
	ctrl  *networking.Conn
	dataL net.Listener
}

// startServer runs a server rooted at root and returns the listening address and data port.
func startServer(t *testing.T, root string, opts ...Option) (string, net.Listener, *Server) {
	t.Helper()

	authFile := filepath.Join(t.TempDir(), ".auth")
	require.NoError(t, os.WriteFile(authFile, []byte("alice secret\nbob hunter2\n"), 0o600))
	store, err := auth.NewFileStore(authFile)
	require.NoError(t, err)

	dataL, err := networking.Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { dataL.Close() })

	base := []Option{
		WithRoot(root),
		WithDataPort(dataL.Addr().(*net.TCPAddr).Port),
		WithListing(&listing.Static{Content: []byte(testListing)}),
		WithTimeouts(5*time.Second, 5*time.Second, 2*time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	srv, err := New(store, append(base, opts...)...)
	require.NoError(t, err)

	l, err := networking.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l.Addr().String(), dataL, srv
}

func dial(t *testing.T, addr string, dataL net.Listener) *testClient {
	t.Helper()
	d := &networking.Dialer{Timeout: time.Second}
	ctrl, err := d.Dial(context.Background(), addr)
	require.NoError(t, err)
	ctrl.ReadTimeout = 5 * time.Second
	t.Cleanup(func() { ctrl.Close() })
	return &testClient{t: t, ctrl: ctrl, dataL: dataL}
}

// login connects and authenticates as alice.
func login(t *testing.T, root string, opts ...Option) *testClient {
	t.Helper()
	addr, dataL, _ := startServer(t, root, opts...)
	return loginAt(t, addr, dataL, "alice", "secret")
}

func loginAt(t *testing.T, addr string, dataL net.Listener, user, pass string) *testClient {
	t.Helper()
	c := dial(t, addr, dataL)
	c.expect(status.Welcome)
	c.send("USER " + user)
	c.expect(status.NeedPassword)
	c.send("PASS " + pass)
	c.expect(status.LoginOK)
	return c
}

func (c *testClient) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, c.ctrl.SendMessage(msg))
}

func (c *testClient) expect(want status.Code) {
	c.t.Helper()
	got, err := c.ctrl.RecvStatus()
	require.NoError(c.t, err)
	require.Equal(c.t, want, got, "expected %s, got %s", want, got)
}

// command sends a verb, expects 200 and completes the data handshake.
func (c *testClient) command(msg string) *networking.Conn {
	c.t.Helper()
	c.send(msg)
	c.expect(status.CommandOK)
	require.NoError(c.t, c.ctrl.SendReady())
	data, err := networking.Accept(c.dataL)
	require.NoError(c.t, err)
	data.ReadTimeout = 5 * time.Second
	c.t.Cleanup(func() { data.Close() })
	return data
}

func readAll(t *testing.T, data *networking.Conn) []byte {
	t.Helper()
	out := []byte{}
	buf := make([]byte, 512)
	for {
		n, err := data.RecvBytes(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
	}
}

func (c *testClient) printDir() string {
	c.t.Helper()
	data := c.command("SPWD")
	c.expect(status.Starting)
	out := readAll(c.t, data)
	c.expect(status.TransferComplete)
	return string(out)
}

func (c *testClient) get(name string) []byte {
	c.t.Helper()
	data := c.command("GET " + name)
	c.expect(status.FileOK)
	out := readAll(c.t, data)
	c.expect(status.TransferComplete)
	return out
}

func (c *testClient) put(name string, content []byte) {
	c.t.Helper()
	data := c.command("PUT " + name)
	require.NoError(c.t, c.ctrl.SendStatus(status.FileOK))
	for off := 0; off < len(content); off += 512 {
		require.NoError(c.t, data.SendBytes(content[off:min(off+512, len(content))]))
	}
	require.NoError(c.t, data.Close())
	require.NoError(c.t, c.ctrl.SendStatus(status.TransferComplete))
}

func payload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i/256)
	}
	return out
}

func TestNewRejectsBadRoot(t *testing.T) {
	store := &auth.FileStore{}
	_, err := New(store, WithRoot(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(store, WithRoot(file))
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := login(t, t.TempDir())
	c.send("QUIT")
	c.expect(status.Goodbye)
	_, err := c.ctrl.RecvStatus()
	assert.Error(t, err)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		user string
		pass string
	}{
		{"wrong password", "USER alice", "PASS wrong"},
		{"unknown user", "USER mallory", "PASS secret"},
		{"password of other user", "USER alice", "PASS hunter2"},
		{"wrong verb", "NAME alice", "PASS secret"},
		{"missing argument", "USER", "PASS secret"},
		{"swapped verbs", "PASS secret", "USER alice"},
	}
	addr, dataL, _ := startServer(t, t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, addr, dataL)
			c.expect(status.Welcome)
			c.send(tt.user)
			c.expect(status.NeedPassword)
			c.send(tt.pass)
			c.expect(status.LoginFailed)

			// The server closes the session.
			_, err := c.ctrl.RecvStatus()
			assert.Error(t, err)
		})
	}
}

func TestDisconnectDuringLogin(t *testing.T) {
	addr, dataL, srv := startServer(t, t.TempDir())
	c := dial(t, addr, dataL)
	c.expect(status.Welcome)
	c.ctrl.Close()

	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownCommand(t *testing.T) {
	c := login(t, t.TempDir())

	for _, msg := range []string{"FOO", "LIST", "GET two words", "   ", "quit", "get x", "Spwd"} {
		c.send(msg)
		c.expect(status.UnknownCommand)
	}

	// Still in the command loop.
	assert.Equal(t, "/\n", c.printDir())
}

func TestList(t *testing.T) {
	c := login(t, t.TempDir())

	data := c.command("SLS")
	c.expect(status.Starting)
	assert.Equal(t, testListing, string(readAll(t, data)))
	c.expect(status.TransferComplete)
}

func TestListProviderFailure(t *testing.T) {
	c := login(t, t.TempDir(), WithListing(&listing.Static{Err: errors.New("boom")}))

	data := c.command("SLS")
	c.expect(status.Unavailable)
	assert.Empty(t, readAll(t, data))
}

func TestListNamedDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "inner.txt"), []byte("x"), 0o644))
	c := login(t, root, WithListing(new(listing.NativeProvider)))

	data := c.command("SLS sub")
	c.expect(status.Starting)
	assert.Contains(t, string(readAll(t, data)), "inner.txt")
	c.expect(status.TransferComplete)
}

func TestGet(t *testing.T) {
	root := t.TempDir()
	sizes := []int{0, 1, 100, 512, 512*3 + 17, 64 * 1024}
	for _, n := range sizes {
		require.NoError(t, os.WriteFile(filepath.Join(root, "f"+itoa(n)), payload(n), 0o644))
	}
	c := login(t, root)

	for _, n := range sizes {
		got := c.get("f" + itoa(n))
		assert.Equal(t, payload(n), got, "size %d", n)
	}
}

func TestGetUnavailable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	c := login(t, root)

	for _, name := range []string{"missing.txt", "dir"} {
		data := c.command("GET " + name)
		c.expect(status.Unavailable)
		assert.Empty(t, readAll(t, data), name)
	}
}

func TestGetConfinedToRoot(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "root")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outer, "secret"), []byte("x"), 0o644))
	c := login(t, root)

	data := c.command("GET ../secret")
	c.expect(status.Unavailable)
	assert.Empty(t, readAll(t, data))
}

func TestPut(t *testing.T) {
	root := t.TempDir()
	c := login(t, root)

	content := payload(512*5 + 3)
	c.put("upload.bin", content)
	// Next command runs once the upload has been handled.
	c.printDir()

	got, err := os.ReadFile(filepath.Join(root, "upload.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, content, c.get("upload.bin"))
}

func TestPutEmpty(t *testing.T) {
	root := t.TempDir()
	c := login(t, root, WithChecksum(fileio.ChecksumSHA256))

	c.put("empty", nil)
	c.printDir()

	info, err := os.Stat(filepath.Join(root, "empty"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPutClientUnavailable(t *testing.T) {
	root := t.TempDir()
	c := login(t, root)

	data := c.command("PUT nothing.txt")
	require.NoError(t, c.ctrl.SendStatus(status.Unavailable))
	assert.Empty(t, readAll(t, data))
	c.printDir()

	assert.NoFileExists(t, filepath.Join(root, "nothing.txt"))
}

func TestPutUncreatableDestination(t *testing.T) {
	root := t.TempDir()
	c := login(t, root)

	c.put("missing/dir/file.txt", payload(2000))
	assert.Equal(t, "/\n", c.printDir())
	assert.NoDirExists(t, filepath.Join(root, "missing"))
}

func TestChangeDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("inside"), 0o644))
	c := login(t, root)

	cd := func(dir string) {
		data := c.command("SCD " + dir)
		assert.Empty(t, readAll(t, data))
	}

	cd("sub")
	assert.Equal(t, "/sub\n", c.printDir())
	assert.Equal(t, []byte("inside"), c.get("f.txt"))
	assert.Equal(t, []byte("inside"), c.get("/sub/f.txt"))

	cd("missing")
	assert.Equal(t, "/sub\n", c.printDir())

	cd("f.txt")
	assert.Equal(t, "/sub\n", c.printDir())

	cd("deeper")
	assert.Equal(t, "/sub/deeper\n", c.printDir())

	cd("../../..")
	assert.Equal(t, "/\n", c.printDir())

	// Directory changes are per session.
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Join(root, "sub"), wd)
}

func TestLoginVerbsInCommandLoop(t *testing.T) {
	c := login(t, t.TempDir())

	data := c.command("USER bob")
	assert.Empty(t, readAll(t, data))
	assert.Equal(t, "/\n", c.printDir())
}

func TestDataConnectFailureEndsSession(t *testing.T) {
	addr, dataL, srv := startServer(t, t.TempDir())
	c := dial(t, addr, dataL)
	c.expect(status.Welcome)
	c.send("USER alice")
	c.expect(status.NeedPassword)
	c.send("PASS secret")
	c.expect(status.LoginOK)

	// Nobody listens on the data port any more.
	dataL.Close()
	c.send("SPWD")
	c.expect(status.CommandOK)
	require.NoError(t, c.ctrl.SendReady())

	_, err := c.ctrl.RecvStatus()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestCompressedStorage(t *testing.T) {
	root := t.TempDir()
	c := login(t, root, WithIOFactory(new(fileio.LZ4Factory)))

	content := payload(10000)
	c.put("packed.bin", content)
	c.printDir()

	assert.FileExists(t, filepath.Join(root, "packed.bin.lz4"))
	assert.NoFileExists(t, filepath.Join(root, "packed.bin"))
	assert.Equal(t, content, c.get("packed.bin"))
}

func TestShutdownClosesSessions(t *testing.T) {
	authFile := filepath.Join(t.TempDir(), ".auth")
	require.NoError(t, os.WriteFile(authFile, []byte("alice secret\n"), 0o600))
	store, err := auth.NewFileStore(authFile)
	require.NoError(t, err)

	srv, err := New(store, WithRoot(t.TempDir()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	l, err := networking.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	c := dial(t, l.Addr().String(), nil)
	c.expect(status.Welcome)
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Zero(t, srv.ActiveSessions())

	_, err = c.ctrl.RecvStatus()
	assert.Error(t, err)
}

func TestGetPeerClosesDataConnection(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), payload(32<<20), 0o644))
	c := login(t, root)

	data := c.command("GET big.bin")
	c.expect(status.FileOK)
	buf := make([]byte, 512)
	_, err := data.RecvBytes(buf)
	require.NoError(t, err)
	require.NoError(t, data.Close())

	c.expect(status.Unavailable)

	// The session survives the failed transfer.
	assert.Equal(t, "/\n", c.printDir())
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644))
	addr, dataL, srv := startServer(t, root)

	// Idle client stuck before login.
	idle := dial(t, addr, dataL)
	idle.expect(status.Welcome)

	a := loginAt(t, addr, dataL, "alice", "secret")
	b := loginAt(t, addr, dataL, "bob", "hunter2")
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 3 }, 2*time.Second, 10*time.Millisecond)

	data := a.command("SCD sub")
	assert.Empty(t, readAll(t, data))
	assert.Equal(t, "/sub\n", a.printDir())

	assert.Equal(t, "/\n", b.printDir())
	assert.Equal(t, []byte("top"), b.get("top.txt"))

	// The idle client is still waiting for its username prompt.
	idle.send("USER alice")
	idle.expect(status.NeedPassword)
	assert.Equal(t, "/sub\n", a.printDir())
}

func TestSessionIdentity(t *testing.T) {
	addr, dataL, srv := startServer(t, t.TempDir())
	assert.True(t, filepath.IsAbs(srv.Root()))

	c := dial(t, addr, dataL)
	c.expect(status.Welcome)
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.mu.Lock()
	var sess *Session
	for s := range srv.sessions {
		sess = s
	}
	srv.mu.Unlock()
	require.NotNil(t, sess)
	assert.Len(t, sess.ID(), 36)

	assert.Equal(t, "greeting", StateGreeting.String())
	assert.Equal(t, "command_loop", StateCommandLoop.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
