// Package aggregate derives the country and admin-region structure of the
// gazetteer: which countries exist, which states each contains, and how many
// records fall under each.
package aggregate

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

// RecordSource loads the whole gazetteer in one call.
type RecordSource interface {
	LoadAll(ctx context.Context) ([]domain.RawRecord, error)
}

// Index is an immutable summary of the gazetteer. All name lists are sorted
// byte-wise on the raw name, independent of locale.
type Index struct {
	countries     []string
	states        map[string][]string
	countryCounts map[string]int
	stateCounts   map[string]map[string]int
	bySlug        map[string]string
	total         int
}

// Build summarizes records in a single pass. Records without a country name
// are not counted; records without an admin region count towards their
// country only.
func Build(records []domain.RawRecord) *Index {
	ix := &Index{
		states:        make(map[string][]string),
		countryCounts: make(map[string]int),
		stateCounts:   make(map[string]map[string]int),
		bySlug:        make(map[string]string),
		total:         len(records),
	}

	for _, r := range records {
		if strings.TrimSpace(r.CountryName) == "" {
			continue
		}
		ix.countryCounts[r.CountryName]++

		if strings.TrimSpace(r.AdminRegion) == "" {
			continue
		}
		byState, ok := ix.stateCounts[r.CountryName]
		if !ok {
			byState = make(map[string]int)
			ix.stateCounts[r.CountryName] = byState
		}
		byState[r.AdminRegion]++
	}

	ix.countries = lo.Keys(ix.countryCounts)
	slices.Sort(ix.countries)

	for country, byState := range ix.stateCounts {
		names := lo.Keys(byState)
		slices.Sort(names)
		ix.states[country] = names
	}

	// Sorted iteration makes the first country win when two names share a slug.
	for _, country := range ix.countries {
		slug := domain.Slug(country)
		if slug == "" {
			continue
		}
		if _, taken := ix.bySlug[slug]; !taken {
			ix.bySlug[slug] = country
		}
	}
	return ix
}

// Load builds an Index from src. When the source is unavailable it returns an
// empty Index together with the error so callers can degrade to empty results.
func Load(ctx context.Context, src RecordSource, logger *slog.Logger) (*Index, error) {
	records, err := src.LoadAll(ctx)
	if err != nil {
		logger.Warn("aggregating empty gazetteer", "error", err)
		return Build(nil), err
	}
	ix := Build(records)
	logger.Info("gazetteer aggregated",
		"records", ix.total,
		"countries", len(ix.countries),
	)
	return ix, nil
}

// DistinctCountries returns every country name, sorted.
func (ix *Index) DistinctCountries() []string {
	return slices.Clone(ix.countries)
}

// StatesIn returns the admin regions recorded for country, sorted.
func (ix *Index) StatesIn(country string) []string {
	return slices.Clone(ix.states[country])
}

// CountByCountry returns the number of records per country.
func (ix *Index) CountByCountry() map[string]int {
	return lo.Assign(ix.countryCounts)
}

// CountByState returns the number of records per admin region of country.
func (ix *Index) CountByState(country string) map[string]int {
	return lo.Assign(ix.stateCounts[country])
}

// Count returns the number of records for a single country.
func (ix *Index) Count(country string) int {
	return ix.countryCounts[country]
}

// CountryBySlug resolves a URL slug back to its country name.
func (ix *Index) CountryBySlug(slug string) (string, bool) {
	country, ok := ix.bySlug[slug]
	return country, ok
}

// Records returns the total number of records the index was built from.
func (ix *Index) Records() int { return ix.total }

// Empty reports whether no country was found.
func (ix *Index) Empty() bool { return len(ix.countries) == 0 }
