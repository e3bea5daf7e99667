package listing

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("12345"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".auth"), []byte("x y"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	return dir
}

func TestNativeProvider(t *testing.T) {
	dir := populate(t)

	out, err := new(NativeProvider).List(context.Background(), dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], " a.txt"))
	assert.True(t, strings.HasSuffix(lines[1], " b.txt"))
	assert.Contains(t, lines[1], " 5 ")
	assert.True(t, strings.HasPrefix(lines[2], "d"))
	assert.NotContains(t, string(out), ".auth")
}

func TestNativeProviderMissingDir(t *testing.T) {
	_, err := new(NativeProvider).List(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecProvider(t *testing.T) {
	if _, err := exec.LookPath("ls"); err != nil {
		t.Skip("ls not available")
	}
	dir := populate(t)

	p, err := New("exec")
	require.NoError(t, err)
	out, err := p.List(context.Background(), dir)
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(string(out), "total"))
	assert.Contains(t, string(out), "a.txt")
	assert.Contains(t, string(out), "b.txt")
	assert.Contains(t, string(out), "sub")
}

func TestExecProviderFailure(t *testing.T) {
	p := &ExecProvider{Command: "definitely-not-a-real-command"}
	_, err := p.List(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New("native")
	require.NoError(t, err)
	assert.IsType(t, &NativeProvider{}, p)

	_, err = New("ftp")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := &Static{Content: []byte("fixed\n")}
	out, err := s.List(context.Background(), "/nowhere")
	require.NoError(t, err)
	assert.Equal(t, "fixed\n", string(out))

	s = &Static{Err: errors.New("boom")}
	_, err = s.List(context.Background(), "/nowhere")
	assert.Error(t, err)
}
