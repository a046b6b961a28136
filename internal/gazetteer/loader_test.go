package gazetteer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

const sampleGazetteer = `[
  {"name":"São Paulo","resolvedCountryName":"Brazil","resolvedAdmin1Code":"Sao Paulo","latitude":"-23.5475","longitude":"-46.63611"},
  {"name":"Rio de Janeiro","resolvedCountryName":"Brazil","resolvedAdmin1Code":"Rio de Janeiro","latitude":-22.90278,"longitude":-43.2075},
  {"name":"Broken","resolvedCountryName":"Brazil","resolvedAdmin1Code":"Bahia","latitude":"north","longitude":"-38.5"},
  {"name":{"first":"Salvador"},"resolvedCountryName":"Brazil","resolvedAdmin1Code":"Bahia","latitude":-12.97,"longitude":-38.5},
  {"name":"Lisbon","resolvedCountryName":"Portugal","resolvedAdmin1Code":null,"latitude":38.71667,"longitude":-9.13333}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolved_cities.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAll(t *testing.T) {
	l := NewLoader(writeFile(t, sampleGazetteer), discardLogger())

	records, err := l.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4, "undecodable element is skipped")

	assert.Equal(t, "São Paulo", records[0].Name)
	assert.InDelta(t, -23.5475, records[0].Latitude.Value, 1e-9)
	assert.Equal(t, "Broken", records[2].Name)
	assert.False(t, records[2].Latitude.Valid, "unparsable latitude decodes as absent")
	assert.True(t, records[2].Longitude.Valid)
	assert.Equal(t, "Lisbon", records[3].Name)
	assert.Empty(t, records[3].AdminRegion)
}

func TestLoadAll_UnparsableCoordinateCountsTowardsCountry(t *testing.T) {
	content := `[
  {"name":"Alpha","resolvedCountryName":"Testland","resolvedAdmin1Code":"North","latitude":10,"longitude":10},
  {"name":"Beta","resolvedCountryName":"Testland","resolvedAdmin1Code":"North","latitude":"n/a","longitude":11},
  {"name":"Gamma","resolvedCountryName":"Testland","resolvedAdmin1Code":"South","latitude":12,"longitude":12}
]`
	l := NewLoader(writeFile(t, content), discardLogger())

	records, err := l.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	_, err = records[1].Resolve(1)
	var merr *domain.MalformedRecordError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"latitude"}, merr.Fields)
}

func TestLoadAll_MissingFile(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.json"), discardLogger())

	records, err := l.LoadAll(context.Background())
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Empty(t, records)
}

func TestLoadAll_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `[{"name":"A","resolvedCountryName":"X"`},
		{"not an array", `{"name":"A"}`},
		{"empty file", ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLoader(writeFile(t, tc.content), discardLogger())
			records, err := l.LoadAll(context.Background())
			require.ErrorIs(t, err, domain.ErrDataUnavailable)
			assert.Empty(t, records)
		})
	}
}

func TestLoadAll_EmptyArray(t *testing.T) {
	l := NewLoader(writeFile(t, ` [ ] `), discardLogger())
	records, err := l.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStream_YieldsInFileOrder(t *testing.T) {
	l := NewLoader(writeFile(t, sampleGazetteer), discardLogger())

	var names []string
	var indexes []int
	var malformed int
	for e, err := range l.Stream(context.Background()) {
		require.NoError(t, err)
		indexes = append(indexes, e.Index)
		if e.Err != nil {
			assert.ErrorIs(t, e.Err, domain.ErrMalformedRecord)
			malformed++
			continue
		}
		names = append(names, e.Record.Name)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, indexes)
	assert.Equal(t, []string{"São Paulo", "Rio de Janeiro", "Broken", "Lisbon"}, names)
	assert.Equal(t, 1, malformed)
}

func TestStream_MissingFile(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.json"), discardLogger())

	var errs []error
	for _, err := range l.Stream(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrDataUnavailable)
}

func TestStream_TruncatedMidFile(t *testing.T) {
	content := `[{"name":"A","resolvedCountryName":"Testland","resolvedAdmin1Code":"North","latitude":1,"longitude":1},{"name":"B","resolvedCount`
	l := NewLoader(writeFile(t, content), discardLogger())

	var got []string
	var streamErr error
	for e, err := range l.Stream(context.Background()) {
		if err != nil {
			streamErr = err
			break
		}
		got = append(got, e.Record.Name)
	}

	assert.Equal(t, []string{"A"}, got)
	require.ErrorIs(t, streamErr, domain.ErrStreamFailure)

	var se *domain.StreamError
	require.ErrorAs(t, streamErr, &se)
	assert.Equal(t, 1, se.Index)
}

func TestStream_EarlyBreak(t *testing.T) {
	l := NewLoader(writeFile(t, sampleGazetteer), discardLogger())

	count := 0
	for _, err := range l.Stream(context.Background()) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestStream_CancelledContext(t *testing.T) {
	l := NewLoader(writeFile(t, sampleGazetteer), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var streamErr error
	for _, err := range l.Stream(ctx) {
		if err != nil {
			streamErr = err
		}
	}
	assert.ErrorIs(t, streamErr, context.Canceled)
	assert.ErrorIs(t, streamErr, domain.ErrStreamFailure)
}
