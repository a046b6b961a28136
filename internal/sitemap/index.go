package sitemap

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wetbulb-sitemap/internal/aggregate"
	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

// Kind names the role of a sitemap artifact.
type Kind string

const (
	KindIndex      Kind = "index"
	KindMain       Kind = "main"
	KindCategories Kind = "categories"
	KindCountry    Kind = "country"
	KindFlat       Kind = "flat"
	KindRobots     Kind = "robots"
)

// Artifact is one document referenced from the sitemap index.
type Artifact struct {
	File    string
	Kind    Kind
	Country string // country documents only
	Part    int    // country and flat documents only
}

// Builder enumerates the site's sitemap documents from an aggregation index.
type Builder struct {
	index    *aggregate.Index
	links    Links
	pageSize int
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewBuilder creates a Builder. pageSize must match the partitioner's.
func NewBuilder(index *aggregate.Index, links Links, pageSize int, clock clockwork.Clock, logger *slog.Logger) *Builder {
	return &Builder{
		index:    index,
		links:    links,
		pageSize: pageSize,
		clock:    clock,
		logger:   logger,
	}
}

// Index returns the aggregation the builder works from.
func (b *Builder) Index() *aggregate.Index { return b.index }

// StaticArtifacts lists the documents present regardless of data.
func StaticArtifacts() []Artifact {
	return []Artifact{
		{File: MainFile, Kind: KindMain},
		{File: CategoriesFile, Kind: KindCategories},
	}
}

// Artifacts lists the static documents followed by every country partition.
func (b *Builder) Artifacts() []Artifact {
	return append(StaticArtifacts(), b.CountryArtifacts()...)
}

// CountryArtifacts lists every country partition, countries in sorted order.
// Countries whose name slugs to the empty string cannot be addressed and are
// left out.
func (b *Builder) CountryArtifacts() []Artifact {
	var out []Artifact
	counts := b.index.CountByCountry()
	for _, country := range b.index.DistinctCountries() {
		slug := domain.Slug(country)
		if slug == "" {
			b.logger.Warn("country has no slug, omitted from index", "country", country)
			continue
		}
		parts := PartsNeeded(counts[country], b.pageSize)
		for part := 1; part <= parts; part++ {
			out = append(out, Artifact{File: CountryFile(slug, part), Kind: KindCountry, Country: country, Part: part})
		}
	}
	return out
}

// PageSize returns the partition size the builder counts parts with.
func (b *Builder) PageSize() int { return b.pageSize }

// FlatArtifacts lists the flat location partitions for flatPageSize.
func (b *Builder) FlatArtifacts(flatPageSize int) []Artifact {
	parts := PartsNeeded(b.index.Records(), flatPageSize)
	out := make([]Artifact, 0, parts)
	for part := 1; part <= parts; part++ {
		out = append(out, Artifact{File: FlatFile(part), Kind: KindFlat, Part: part})
	}
	return out
}

// Refs turns artifacts into index entries located under locPrefix, which is
// the base URL for served documents or base + "/sitemaps" for static files.
// Every entry's lastmod is the build time, not the data's modification time.
func (b *Builder) Refs(artifacts []Artifact, locPrefix string) []Ref {
	lastmod := b.clock.Now().UTC().Format(time.RFC3339)
	refs := make([]Ref, 0, len(artifacts))
	for _, a := range artifacts {
		refs = append(refs, Ref{Loc: locPrefix + "/" + a.File, LastMod: lastmod})
	}
	return refs
}

// MainURLs returns the static page entries.
func (b *Builder) MainURLs() []URL {
	return []URL{
		{Loc: b.links.Page("/"), ChangeFreq: Daily, Priority: 1.0},
		{Loc: b.links.Page("/about"), ChangeFreq: Monthly, Priority: 0.8},
		{Loc: b.links.Page(LocationsPath), ChangeFreq: Daily, Priority: 0.9},
	}
}

// CategoryURLs returns the locations landing page followed by each country
// and, after each country, its states.
func (b *Builder) CategoryURLs() []URL {
	urls := []URL{{Loc: b.links.Page(LocationsPath), ChangeFreq: Daily, Priority: 1.0}}
	for _, country := range b.index.DistinctCountries() {
		path, ok := b.links.CountryPath(country)
		if !ok {
			continue
		}
		urls = append(urls, URL{Loc: b.links.Page(path), ChangeFreq: Daily, Priority: 0.9})

		for _, state := range b.index.StatesIn(country) {
			statePath, ok := b.links.StatePath(country, state)
			if !ok {
				continue
			}
			urls = append(urls, URL{Loc: b.links.Page(statePath), ChangeFreq: Daily, Priority: 0.8})
		}
	}
	return urls
}

// Robots renders robots.txt pointing crawlers at the root sitemap.
func Robots(links Links) string {
	return "User-agent: *\nAllow: /\n\nSitemap: " + links.Page("/"+RootIndexFile) + "\n"
}
