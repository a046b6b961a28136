package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wetbulb-sitemap/internal/aggregate"
	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// snapshot is what the served index depends on: one aggregation of the
// gazetteer and the two documents rendered from it.
type snapshot struct {
	builder    *sitemap.Builder
	index      []byte
	categories []byte
}

// Documents renders sitemap documents on request. The aggregation, index and
// categories documents are cached for a TTL; country partitions are streamed
// from the gazetteer on every request and buffered before they are returned.
type Documents struct {
	gazetteer   Gazetteer
	links       sitemap.Links
	partitioner *sitemap.Partitioner
	cache       *sitemap.Cache[*snapshot]
	main        []byte
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	pageSize    int
	ready       atomic.Bool
}

// NewDocuments creates a Documents server. A non-positive ttl disables the
// index cache.
func NewDocuments(gz Gazetteer, links sitemap.Links, pageSize int, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Documents, error) {
	var main bytes.Buffer
	static := sitemap.NewBuilder(aggregate.Build(nil), links, pageSize, clock, logger)
	if err := sitemap.EncodeURLSet(&main, static.MainURLs()); err != nil {
		return nil, fmt.Errorf("render main sitemap: %w", err)
	}

	return &Documents{
		gazetteer:   gz,
		links:       links,
		partitioner: sitemap.NewPartitioner(gz, links, pageSize, logger, metrics),
		cache:       sitemap.NewCache[*snapshot](clock, ttl),
		main:        main.Bytes(),
		logger:      logger,
		metrics:     metrics,
		clock:       clock,
		pageSize:    pageSize,
	}, nil
}

// Warm loads the aggregation ahead of the first request.
func (d *Documents) Warm(ctx context.Context) error {
	_, err := d.snapshot(ctx)
	return err
}

// CheckReadiness reports ready once the gazetteer has been aggregated.
func (d *Documents) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("gazetteer not aggregated yet")
	}
	return nil
}

// Index returns the sitemap index with every document located at the site
// root. While the gazetteer is unavailable it lists only the static
// documents.
func (d *Documents) Index(ctx context.Context) ([]byte, error) {
	snap, err := d.snapshot(ctx)
	if snap == nil {
		return nil, err
	}
	return snap.index, nil
}

// Main returns the static pages document. It does not depend on the
// gazetteer.
func (d *Documents) Main() []byte { return d.main }

// Categories returns the country and state landing pages document. While
// the gazetteer is unavailable it holds only the locations landing page.
func (d *Documents) Categories(ctx context.Context) ([]byte, error) {
	snap, err := d.snapshot(ctx)
	if snap == nil {
		return nil, err
	}
	return snap.categories, nil
}

// Robots returns robots.txt.
func (d *Documents) Robots() []byte {
	return []byte(sitemap.Robots(d.links))
}

// CountryFile serves a country partition by its file name, such as
// "sitemap-country-germany-2.xml".
func (d *Documents) CountryFile(ctx context.Context, name string) ([]byte, error) {
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ix := snap.builder.Index()
	slug, part, err := sitemap.ParseCountryFile(name, func(s string) bool {
		_, ok := ix.CountryBySlug(s)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return d.country(ctx, ix, slug, part)
}

// Country serves partition part of the country whose slug is given.
func (d *Documents) Country(ctx context.Context, slug string, part int) ([]byte, error) {
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.country(ctx, snap.builder.Index(), slug, part)
}

func (d *Documents) country(ctx context.Context, ix *aggregate.Index, slug string, part int) ([]byte, error) {
	country, ok := ix.CountryBySlug(slug)
	if !ok {
		return nil, &domain.InvalidParameterError{Param: "country", Value: slug, Reason: "unknown country"}
	}
	parts := sitemap.PartsNeeded(ix.Count(country), d.pageSize)
	if part < 1 || part > parts {
		return nil, &domain.InvalidParameterError{
			Param:  "part",
			Value:  strconv.Itoa(part),
			Reason: fmt.Sprintf("%s has %d part(s)", country, parts),
		}
	}

	pt, _, err := d.partitioner.Partition(ctx, country, part)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := sitemap.EncodeURLSet(&buf, pt.URLs); err != nil {
		return nil, fmt.Errorf("render %s: %w", pt.File, err)
	}
	return buf.Bytes(), nil
}

// snapshot returns the cached aggregation. When the gazetteer is unavailable
// it returns a snapshot of empty aggregates together with the error; that
// snapshot is not cached, so the next request retries the load.
func (d *Documents) snapshot(ctx context.Context) (*snapshot, error) {
	snap, hit, err := d.cache.Get(ctx, d.load)
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		d.metrics.IndexCache.WithLabelValues("error").Inc()
		empty, rerr := d.render(aggregate.Build(nil))
		if rerr != nil {
			return nil, rerr
		}
		d.logger.Warn("serving empty aggregates", "error", err)
		return empty, err
	case err != nil:
		d.metrics.IndexCache.WithLabelValues("error").Inc()
		return nil, err
	case hit:
		d.metrics.IndexCache.WithLabelValues("hit").Inc()
	default:
		d.metrics.IndexCache.WithLabelValues("miss").Inc()
	}
	d.ready.Store(true)
	return snap, nil
}

func (d *Documents) load(ctx context.Context) (*snapshot, error) {
	ix, err := aggregate.Load(ctx, d.gazetteer, d.logger)
	if err != nil {
		return nil, err
	}
	return d.render(ix)
}

func (d *Documents) render(ix *aggregate.Index) (*snapshot, error) {
	b := sitemap.NewBuilder(ix, d.links, d.pageSize, d.clock, d.logger)

	var index, categories bytes.Buffer
	if err := sitemap.EncodeIndex(&index, b.Refs(b.Artifacts(), d.links.Base())); err != nil {
		return nil, fmt.Errorf("render sitemap index: %w", err)
	}
	if err := sitemap.EncodeURLSet(&categories, b.CategoryURLs()); err != nil {
		return nil, fmt.Errorf("render categories sitemap: %w", err)
	}
	return &snapshot{builder: b, index: index.Bytes(), categories: categories.Bytes()}, nil
}
