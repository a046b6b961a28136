package filesystem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	return NewSink(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestSink_WriteDocument(t *testing.T) {
	s := newTestSink(t)

	require.NoError(t, s.WriteDocument(context.Background(), "sitemaps/sitemap-main.xml", writeString("<urlset/>")))

	data, err := os.ReadFile(filepath.Join(s.Root(), "sitemaps", "sitemap-main.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<urlset/>", string(data))
}

func TestSink_ReplacesExisting(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDocument(ctx, "robots.txt", writeString("old")))
	require.NoError(t, s.WriteDocument(ctx, "robots.txt", writeString("new")))

	data, err := os.ReadFile(filepath.Join(s.Root(), "robots.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestSink_RenderFailureLeavesNothing(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDocument(ctx, "sitemap.xml", writeString("complete")))

	err := s.WriteDocument(ctx, "sitemap.xml", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("stream failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), "sitemap.xml"))
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data), "previous document should survive")

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be removed")
}

func TestSink_RejectsEscapingNames(t *testing.T) {
	s := newTestSink(t)
	for _, name := range []string{"../outside.xml", "/etc/passwd", "sitemaps/../../x.xml"} {
		assert.Error(t, s.WriteDocument(context.Background(), name, writeString("x")), name)
	}
}

func TestSink_CancelledContext(t *testing.T) {
	s := newTestSink(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WriteDocument(ctx, "sitemap.xml", writeString("x"))
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(s.Root(), "sitemap.xml"))
	assert.True(t, os.IsNotExist(statErr))
}
