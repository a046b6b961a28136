package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wetbulb-sitemap/internal/aggregate"
	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// DocumentsDir is the directory, relative to the output root, that holds
// every document except the root index and robots.txt.
const DocumentsDir = "sitemaps"

const maxPublishAttempts = 3

// Gazetteer is both an eager and a streaming record source.
type Gazetteer interface {
	aggregate.RecordSource
	sitemap.Streamer
}

// Sink stores a rendered document under a slash-separated relative name.
// A document is either stored completely or not at all.
type Sink interface {
	WriteDocument(ctx context.Context, name string, render func(io.Writer) error) error
}

// Publisher announces written documents.
type Publisher interface {
	Publish(ctx context.Context, events []domain.ArtifactEvent) error
}

// Settings sizes a batch run.
type Settings struct {
	PageSize     int
	FlatPageSize int
	Concurrency  int
}

// Options selects the layout of one run.
type Options struct {
	Flat bool
}

// TaskFailure records one country (or the flat scan) that did not complete.
type TaskFailure struct {
	Country string
	Err     error
}

// Report summarizes a batch run. Documents listed in Written are complete on
// the sink even when Failed is non-empty.
type Report struct {
	Written       []domain.ArtifactEvent
	Failed        []TaskFailure
	Malformed     int
	Unpublishable int
	Collisions    int
	PublishErr    error
}

// Err joins every task failure, or returns nil when all tasks succeeded.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		if f.Country == "" {
			errs = append(errs, f.Err)
			continue
		}
		errs = append(errs, fmt.Errorf("country %q: %w", f.Country, f.Err))
	}
	return errors.Join(errs...)
}

// Generator pre-renders every sitemap document to a Sink. Country tasks run
// concurrently up to Settings.Concurrency; a failing task never stops its
// siblings.
type Generator struct {
	gazetteer Gazetteer
	links     sitemap.Links
	sink      Sink
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	settings  Settings
}

// New creates a Generator. publisher may be nil to skip notifications.
func New(gz Gazetteer, links sitemap.Links, sink Sink, publisher Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, settings Settings) *Generator {
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	return &Generator{
		gazetteer: gz,
		links:     links,
		sink:      sink,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		settings:  settings,
	}
}

// Generate writes the main, categories and partition documents, then the
// index of everything that was written and robots.txt. It returns an error
// only when the gazetteer cannot be aggregated or the index cannot be
// written; per-task failures are reported in Report.Failed.
func (g *Generator) Generate(ctx context.Context, opts Options) (Report, error) {
	start := g.clock.Now()
	g.metrics.BatchRunning.Set(1)
	defer g.metrics.BatchRunning.Set(0)

	ix, err := aggregate.Load(ctx, g.gazetteer, g.logger)
	if err != nil {
		return Report{}, fmt.Errorf("aggregate gazetteer: %w", err)
	}
	builder := sitemap.NewBuilder(ix, g.links, g.settings.PageSize, g.clock, g.logger)
	rec := &recorder{clock: g.clock}

	g.logger.Info("generation started",
		"countries", len(ix.DistinctCountries()),
		"flat", opts.Flat,
		"concurrency", g.settings.Concurrency,
	)

	if err := g.writeURLSet(ctx, rec, sitemap.Artifact{File: sitemap.MainFile, Kind: sitemap.KindMain}, builder.MainURLs()); err != nil {
		rec.fail("", err)
	}
	if err := g.writeURLSet(ctx, rec, sitemap.Artifact{File: sitemap.CategoriesFile, Kind: sitemap.KindCategories}, builder.CategoryURLs()); err != nil {
		rec.fail("", err)
	}

	var expected []sitemap.Artifact
	if opts.Flat {
		expected = append(sitemap.StaticArtifacts(), builder.FlatArtifacts(g.settings.FlatPageSize)...)
		g.generateFlat(ctx, rec)
	} else {
		expected = builder.Artifacts()
		g.generateCountries(ctx, ix.DistinctCountries(), rec)
	}

	written := rec.writtenFiles()
	indexed := slices.DeleteFunc(slices.Clone(expected), func(a sitemap.Artifact) bool { return !written[a.File] })
	if err := g.writeIndex(ctx, rec, builder.Refs(indexed, g.links.Page("/"+DocumentsDir))); err != nil {
		return rec.report(expected), fmt.Errorf("write index: %w", err)
	}
	if err := g.writeRobots(ctx, rec); err != nil {
		rec.fail("", err)
	}

	report := rec.report(expected)
	report.PublishErr = g.publish(ctx, report.Written)

	g.logger.Info("generation finished",
		"written", len(report.Written),
		"failed", len(report.Failed),
		"malformed", report.Malformed,
		"collisions", report.Collisions,
		"duration", g.clock.Since(start),
	)
	return report, nil
}

func (g *Generator) generateCountries(ctx context.Context, countries []string, rec *recorder) {
	partitioner := sitemap.NewPartitioner(g.gazetteer, g.links, g.settings.PageSize, g.logger, g.metrics)

	var eg errgroup.Group
	eg.SetLimit(g.settings.Concurrency)
	for _, country := range countries {
		if domain.Slug(country) == "" {
			continue
		}
		eg.Go(func() error {
			stats, err := partitioner.Partitions(ctx, country, func(pt sitemap.Partition) error {
				a := sitemap.Artifact{File: pt.File, Kind: sitemap.KindCountry, Country: country, Part: pt.Part}
				return g.writeURLSet(ctx, rec, a, pt.URLs)
			})
			rec.addStats(stats)
			if err != nil {
				g.logger.Error("country generation failed", "country", country, "error", err)
				rec.fail(country, err)
			}
			// Failures are recorded, not returned, so siblings keep running.
			return nil
		})
	}
	_ = eg.Wait()
}

func (g *Generator) generateFlat(ctx context.Context, rec *recorder) {
	partitioner := sitemap.NewPartitioner(g.gazetteer, g.links, g.settings.FlatPageSize, g.logger, g.metrics)
	stats, err := partitioner.FlatPartitions(ctx, func(pt sitemap.Partition) error {
		return g.writeURLSet(ctx, rec, sitemap.Artifact{File: pt.File, Kind: sitemap.KindFlat, Part: pt.Part}, pt.URLs)
	})
	rec.addStats(stats)
	if err != nil {
		g.logger.Error("flat generation failed", "error", err)
		rec.fail("", err)
	}
}

func (g *Generator) writeURLSet(ctx context.Context, rec *recorder, a sitemap.Artifact, urls []sitemap.URL) error {
	name := DocumentsDir + "/" + a.File
	err := g.sink.WriteDocument(ctx, name, func(w io.Writer) error {
		return sitemap.EncodeURLSet(w, urls)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	rec.written(name, a, len(urls))
	return nil
}

func (g *Generator) writeIndex(ctx context.Context, rec *recorder, refs []sitemap.Ref) error {
	err := g.sink.WriteDocument(ctx, sitemap.RootIndexFile, func(w io.Writer) error {
		return sitemap.EncodeIndex(w, refs)
	})
	if err != nil {
		return err
	}
	rec.written(sitemap.RootIndexFile, sitemap.Artifact{File: sitemap.RootIndexFile, Kind: sitemap.KindIndex}, len(refs))
	return nil
}

func (g *Generator) writeRobots(ctx context.Context, rec *recorder) error {
	err := g.sink.WriteDocument(ctx, sitemap.RobotsFile, func(w io.Writer) error {
		_, err := io.WriteString(w, sitemap.Robots(g.links))
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", sitemap.RobotsFile, err)
	}
	rec.written(sitemap.RobotsFile, sitemap.Artifact{File: sitemap.RobotsFile, Kind: sitemap.KindRobots}, 0)
	return nil
}

// publish announces written documents, retrying with exponential backoff:
// 200ms doubling up to 5s.
func (g *Generator) publish(ctx context.Context, events []domain.ArtifactEvent) error {
	if g.publisher == nil || len(events) == 0 {
		return nil
	}

	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second
	for attempt := 1; ; attempt++ {
		err := g.publisher.Publish(ctx, events)
		if err == nil {
			g.metrics.ArtifactsPublished.WithLabelValues("success").Add(float64(len(events)))
			return nil
		}
		if attempt >= maxPublishAttempts || ctx.Err() != nil {
			g.metrics.ArtifactsPublished.WithLabelValues("error").Add(float64(len(events)))
			g.logger.Error("publish artifacts failed", "attempts", attempt, "error", err)
			return err
		}
		g.logger.Warn("publish artifacts failed, retrying", "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// recorder collects results from concurrent tasks.
type recorder struct {
	clock clockwork.Clock

	mu            sync.Mutex
	events        []domain.ArtifactEvent
	failed        []TaskFailure
	malformed     int
	unpublishable int
	collisions    int
}

func (r *recorder) written(name string, a sitemap.Artifact, urls int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, domain.ArtifactEvent{
		File:        name,
		Kind:        string(a.Kind),
		Country:     a.Country,
		Part:        a.Part,
		URLCount:    urls,
		GeneratedAt: r.clock.Now().UTC(),
	})
}

func (r *recorder) fail(country string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, TaskFailure{Country: country, Err: err})
}

func (r *recorder) addStats(s sitemap.ScanStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed += s.Malformed
	r.unpublishable += s.Unpublishable
	r.collisions += len(s.Collisions)
}

func (r *recorder) writtenFiles() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.events))
	for _, e := range r.events {
		out[strings.TrimPrefix(e.File, DocumentsDir+"/")] = true
	}
	return out
}

// report orders written documents as the index lists them, followed by the
// index and robots.txt, and failures by country.
func (r *recorder) report(expected []sitemap.Artifact) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rank := make(map[string]int, len(expected)+2)
	for i, a := range expected {
		rank[DocumentsDir+"/"+a.File] = i
	}
	rank[sitemap.RootIndexFile] = len(expected)
	rank[sitemap.RobotsFile] = len(expected) + 1

	events := slices.Clone(r.events)
	slices.SortStableFunc(events, func(a, b domain.ArtifactEvent) int {
		return rank[a.File] - rank[b.File]
	})
	failed := slices.Clone(r.failed)
	slices.SortStableFunc(failed, func(a, b TaskFailure) int {
		return strings.Compare(a.Country, b.Country)
	})

	return Report{
		Written:       events,
		Failed:        failed,
		Malformed:     r.malformed,
		Unpublishable: r.unpublishable,
		Collisions:    r.collisions,
	}
}
