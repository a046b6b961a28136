package pipeline_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wetbulb-sitemap/internal/adapter/filesystem"
	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
	"github.com/couchcryptid/wetbulb-sitemap/internal/pipeline"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// TestGenerator_ResolvedFixture runs a full batch over a small resolved
// gazetteer and validates every XML file it writes.
func TestGenerator_ResolvedFixture(t *testing.T) {
	loader := gazetteer.NewLoader(filepath.Join("testdata", "resolved_cities.json"), discardLogger())
	out := t.TempDir()
	sink := filesystem.NewSink(out, discardLogger())
	g := newGenerator(loader, sink, nil, defaultSettings())

	report, err := g.Generate(context.Background(), pipeline.Options{})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.Malformed, "Porto has no latitude")
	assert.Equal(t, 1, report.Unpublishable, "the Japanese city name has no Latin portion")
	assert.Equal(t, 1, report.Collisions, "Cuenca appears twice")

	var files []string
	validator, err := sitemap.NewValidator()
	require.NoError(t, err)
	err = filepath.WalkDir(out, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(out, path)
		files = append(files, filepath.ToSlash(rel))
		if !strings.HasSuffix(path, ".xml") {
			return nil
		}
		doc, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NoError(t, validator.Validate(doc), rel)
		return nil
	})
	require.NoError(t, err)

	want := []string{
		"robots.txt",
		"sitemap.xml",
		"sitemaps/sitemap-categories.xml",
		"sitemaps/sitemap-country-ecuador.xml",
		"sitemaps/sitemap-country-germany-2.xml",
		"sitemaps/sitemap-country-germany.xml",
		"sitemaps/sitemap-country-japan.xml",
		"sitemaps/sitemap-country-portugal.xml",
		"sitemaps/sitemap-main.xml",
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("output tree mismatch (-want +got):\n%s", diff)
	}

	portugal, err := os.ReadFile(filepath.Join(out, "sitemaps", "sitemap-country-portugal.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(portugal), "/portugal/lisbon/lisbon")
	assert.NotContains(t, string(portugal), "porto")

	japan, err := os.ReadFile(filepath.Join(out, "sitemaps", "sitemap-country-japan.xml"))
	require.NoError(t, err)
	assert.NotContains(t, string(japan), "<url>")
}
