// Package listing produces the directory listings sent for SLS.
package listing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Provider returns a listing of dir
type Provider interface {
	List(ctx context.Context, dir string) ([]byte, error)
}

// New returns the provider called name: "exec" or "native"
func New(name string) (Provider, error) {
	switch strings.ToLower(name) {
	case "exec":
		return &ExecProvider{Command: "ls", Args: []string{"-l"}}, nil
	case "", "native":
		return new(NativeProvider), nil
	}
	return nil, fmt.Errorf("unknown listing provider %q", name)
}

// ExecProvider runs an external command in dir and drops its first line ("total N")
type ExecProvider struct {
	Command string
	Args    []string
}

func (e *ExecProvider) List(ctx context.Context, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Command, err)
	}
	if bytes.HasPrefix(out, []byte("total ")) {
		if i := bytes.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		} else {
			out = nil
		}
	}
	return out, nil
}

// NativeProvider renders an "ls -l" style listing without leaving the process
type NativeProvider struct{}

func (n *NativeProvider) List(ctx context.Context, dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var buf bytes.Buffer
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Hidden files are skipped like ls does.
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed while listing.
			continue
		}
		fmt.Fprintf(&buf, "%s %12d %s %s\n",
			info.Mode().String(), info.Size(), info.ModTime().Format("Jan _2 15:04"), entry.Name())
	}
	return buf.Bytes(), nil
}

// Static always returns the same content
type Static struct {
	Content []byte
	Err     error
}

func (s *Static) List(ctx context.Context, dir string) ([]byte, error) {
	return s.Content, s.Err
}
