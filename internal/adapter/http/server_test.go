package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/wetbulb-sitemap/internal/adapter/http"
	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// mockDocuments serves Germany with two parts. With dataErr set it behaves
// like an unavailable gazetteer: empty aggregates for the index and
// categories, errors for country partitions.
type mockDocuments struct {
	readyErr error
	dataErr  error
	countErr error
	calls    []string
}

func (m *mockDocuments) CheckReadiness(context.Context) error { return m.readyErr }

func (m *mockDocuments) Index(context.Context) ([]byte, error) {
	m.calls = append(m.calls, "index")
	if m.dataErr != nil {
		return []byte("<sitemapindex>static</sitemapindex>"), nil
	}
	return []byte("<sitemapindex/>"), nil
}

func (m *mockDocuments) Main() []byte { return []byte("<urlset>main</urlset>") }

func (m *mockDocuments) Categories(context.Context) ([]byte, error) {
	if m.dataErr != nil {
		return []byte("<urlset>landing</urlset>"), nil
	}
	return []byte("<urlset>categories</urlset>"), nil
}

func (m *mockDocuments) Country(_ context.Context, slug string, part int) ([]byte, error) {
	m.calls = append(m.calls, fmt.Sprintf("country %s %d", slug, part))
	if m.dataErr != nil {
		return nil, m.dataErr
	}
	if slug != "germany" {
		return nil, &domain.InvalidParameterError{Param: "country", Value: slug, Reason: "unknown country"}
	}
	if part > 2 {
		return nil, &domain.InvalidParameterError{Param: "part", Value: strconv.Itoa(part), Reason: "Germany has 2 part(s)"}
	}
	if m.countErr != nil {
		return nil, m.countErr
	}
	return []byte(fmt.Sprintf("<urlset>%s %d</urlset>", slug, part)), nil
}

func (m *mockDocuments) CountryFile(ctx context.Context, name string) ([]byte, error) {
	slug, part, err := sitemap.ParseCountryFile(name, func(s string) bool { return s == "germany" })
	if err != nil {
		return nil, err
	}
	return m.Country(ctx, slug, part)
}

func (m *mockDocuments) Robots() []byte { return []byte("User-agent: *\n") }

func newTestServer(docs *mockDocuments) *httpadapter.Server {
	return httpadapter.NewServer(":0", docs, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockDocuments{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(&mockDocuments{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(&mockDocuments{readyErr: fmt.Errorf("gazetteer not aggregated yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "gazetteer not aggregated yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockDocuments{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDocumentRoutes(t *testing.T) {
	tests := []struct {
		target      string
		body        string
		contentType string
	}{
		{"/sitemap.xml", "<sitemapindex/>", sitemap.ContentType},
		{"/sitemap-index.xml", "<sitemapindex/>", sitemap.ContentType},
		{"/sitemap-main.xml", "<urlset>main</urlset>", sitemap.ContentType},
		{"/sitemap-categories.xml", "<urlset>categories</urlset>", sitemap.ContentType},
		{"/sitemap-country-germany.xml", "<urlset>germany 1</urlset>", sitemap.ContentType},
		{"/sitemap-country-germany-2.xml", "<urlset>germany 2</urlset>", sitemap.ContentType},
		{"/sitemap-country.xml?country=germany", "<urlset>germany 1</urlset>", sitemap.ContentType},
		{"/sitemap-country.xml?country=germany&part=2", "<urlset>germany 2</urlset>", sitemap.ContentType},
		{"/robots.txt", "User-agent: *\n", "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(newTestServer(&mockDocuments{}), tt.target)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
		})
	}
}

func TestCountry_BadRequestEchoesParameter(t *testing.T) {
	tests := []struct {
		target string
		echo   string
	}{
		{"/sitemap-country.xml?country=atlantis", `invalid country "atlantis"`},
		{"/sitemap-country.xml?country=germany&part=abc", `invalid part "abc"`},
		{"/sitemap-country.xml?country=germany&part=0", `invalid part "0"`},
		{"/sitemap-country.xml?country=germany&part=3", `invalid part "3"`},
		{"/sitemap-country.xml", `invalid country ""`},
		{"/sitemap-country-atlantis.xml", `invalid country "atlantis"`},
		{"/sitemap-country-germany-9.xml", `invalid part "9"`},
		{"/sitemap-country-germany-1.xml", `invalid part "1"`},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(newTestServer(&mockDocuments{}), tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.echo)
		})
	}
}

func TestDataUnavailable(t *testing.T) {
	docs := &mockDocuments{
		readyErr: fmt.Errorf("gazetteer not aggregated yet"),
		dataErr:  fmt.Errorf("open gazetteer: %w", domain.ErrDataUnavailable),
	}
	srv := newTestServer(docs)

	for _, target := range []string{"/sitemap.xml", "/sitemap-categories.xml", "/sitemap-main.xml"} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	rec := get(srv, "/sitemap-country-germany.xml")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gazetteer", "internal errors are not echoed")

	rec = get(srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamFailureReturns500(t *testing.T) {
	docs := &mockDocuments{countErr: &domain.StreamError{Index: 42, Err: io.ErrUnexpectedEOF}}
	rec := get(newTestServer(docs), "/sitemap-country.xml?country=germany&part=2")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<urlset", "no partial document")
}

func TestUnknownPathReturns404(t *testing.T) {
	docs := &mockDocuments{}
	rec := get(newTestServer(docs), "/favicon.ico")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, docs.calls)
}

func TestPostNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&mockDocuments{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sitemap.xml", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
