// Package filesystem stores generated documents on local disk.
package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Sink writes documents below a root directory. Each document is rendered to
// a temporary file in its target directory and renamed into place, so a
// reader never sees a partially written file.
type Sink struct {
	root   string
	logger *slog.Logger
}

// NewSink creates a Sink rooted at dir.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{root: dir, logger: logger}
}

// Root returns the output directory.
func (s *Sink) Root() string { return s.root }

// WriteDocument renders a document to name, a slash-separated path relative
// to the root.
func (s *Sink) WriteDocument(ctx context.Context, name string, render func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean(name)
	if !filepath.IsLocal(clean) {
		return fmt.Errorf("document name %q escapes the output directory", name)
	}

	target := filepath.Join(s.root, filepath.FromSlash(clean))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	bw := bufio.NewWriter(tmp)
	if err := render(bw); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move %s into place: %w", name, err)
	}

	s.logger.Debug("document written", "path", target)
	return nil
}
