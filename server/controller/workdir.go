package server

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes the server root
var ErrOutsideRoot = errors.New("path is outside the server root")

// workDir is the per-session working directory. cwd is a "/"-rooted path relative to root.
type workDir struct {
	root string
	cwd  string
}

func newWorkDir(root string) *workDir {
	return &workDir{root: root, cwd: "/"}
}

// Resolve maps a client supplied name to a path on disk.
// Absolute names start at the server root, relative names at the working directory.
func (w *workDir) Resolve(name string) (string, error) {
	virtual := w.virtual(name)
	real := filepath.Join(w.root, filepath.FromSlash(virtual))
	// Symlinks are not followed here, only lexical escapes are rejected.
	if real != w.root && !strings.HasPrefix(real, w.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, ErrOutsideRoot)
	}
	return real, nil
}

// Change moves the working directory to dir, which must exist inside the root
func (w *workDir) Change(dir string) error {
	real, err := w.Resolve(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(real)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	w.cwd = w.virtual(dir)
	return nil
}

// Path returns the working directory as seen by the client
func (w *workDir) Path() string {
	return w.cwd
}

// Real returns the working directory on disk
func (w *workDir) Real() string {
	real, _ := w.Resolve(".")
	return real
}

// virtual joins name onto the working directory. ".." never climbs above "/".
func (w *workDir) virtual(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}
	return path.Join(w.cwd, name)
}
