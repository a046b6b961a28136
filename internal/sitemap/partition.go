package sitemap

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
)

const (
	// DefaultPageSize keeps country files under the 10,000 URL protocol limit.
	DefaultPageSize = 9999
	// DefaultFlatPageSize is the page size of flat location files.
	DefaultFlatPageSize = 10000
	// MaxPageSize is the protocol limit on URLs per document.
	MaxPageSize = 50000

	cityChangeFreq = Hourly
	cityPriority   = Priority(0.7)

	geohashPrecision = 7
	earthRadiusKm    = 6371.0088
)

// Streamer yields gazetteer entries in file order.
type Streamer interface {
	Stream(ctx context.Context) iter.Seq2[gazetteer.Entry, error]
}

// Partition is one bounded slice of a country's records, or of the whole
// dataset in flat mode, rendered as city URLs in stream order.
type Partition struct {
	Country string // empty in flat mode
	Part    int
	File    string
	URLs    []URL
}

// CollisionRecord identifies one side of a slug collision.
type CollisionRecord struct {
	Index   int
	Name    string
	Geohash string
}

// Collision reports two distinct records that share a location path.
type Collision struct {
	Path       string
	First      CollisionRecord
	Second     CollisionRecord
	DistanceKm float64
}

// ScanStats summarizes one pass over the gazetteer.
type ScanStats struct {
	Matched       int // records that consumed a partition slot
	Malformed     int
	Unpublishable int
	Published     int
	Collisions    []Collision
}

// PartsNeeded returns how many partitions count records occupy at pageSize.
func PartsNeeded(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Partitioner slices the streamed gazetteer into partitions. Every record
// whose country matches consumes an index slot, publishable or not, so a
// partition's boundaries depend only on stream order and page size.
type Partitioner struct {
	source   Streamer
	links    Links
	pageSize int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewPartitioner creates a Partitioner producing pageSize URLs per partition.
func NewPartitioner(source Streamer, links Links, pageSize int, logger *slog.Logger, metrics *observability.Metrics) *Partitioner {
	return &Partitioner{
		source:   source,
		links:    links,
		pageSize: pageSize,
		logger:   logger,
		metrics:  metrics,
	}
}

// PageSize returns the configured number of slots per partition.
func (p *Partitioner) PageSize() int { return p.pageSize }

// Partition builds partition part (1-based) of country. A part past the end
// of the country yields an empty partition.
func (p *Partitioner) Partition(ctx context.Context, country string, part int) (Partition, ScanStats, error) {
	var out Partition
	stats, err := p.scan(ctx, countryScope(country), part, func(pt Partition) error {
		out = pt
		return nil
	})
	if err != nil {
		return Partition{}, stats, err
	}
	if out.Part == 0 {
		out = countryScope(country).newPartition(part)
	}
	return out, stats, nil
}

// Partitions streams the gazetteer once and calls emit for every partition of
// country, in part order. A failing emit stops the scan and is returned.
func (p *Partitioner) Partitions(ctx context.Context, country string, emit func(Partition) error) (ScanStats, error) {
	return p.scan(ctx, countryScope(country), 0, emit)
}

// FlatPartition builds partition part of the whole dataset.
func (p *Partitioner) FlatPartition(ctx context.Context, part int) (Partition, ScanStats, error) {
	var out Partition
	stats, err := p.scan(ctx, flatScope(), part, func(pt Partition) error {
		out = pt
		return nil
	})
	if err != nil {
		return Partition{}, stats, err
	}
	if out.Part == 0 {
		out = flatScope().newPartition(part)
	}
	return out, stats, nil
}

// FlatPartitions calls emit for every partition of the whole dataset.
func (p *Partitioner) FlatPartitions(ctx context.Context, emit func(Partition) error) (ScanStats, error) {
	return p.scan(ctx, flatScope(), 0, emit)
}

// Collisions scans the whole dataset and reports every location path shared
// by more than one record.
func (p *Partitioner) Collisions(ctx context.Context) ([]Collision, ScanStats, error) {
	stats, err := p.scan(ctx, flatScope(), 0, func(Partition) error { return nil })
	return stats.Collisions, stats, err
}

type scope struct {
	flat    bool
	country string
	slug    string
}

func countryScope(country string) scope {
	return scope{country: country, slug: domain.Slug(country)}
}

func flatScope() scope { return scope{flat: true} }

func (s scope) matches(r domain.RawRecord) bool {
	return s.flat || r.CountryName == s.country
}

func (s scope) mode() string {
	if s.flat {
		return "flat"
	}
	return "country"
}

func (s scope) newPartition(part int) Partition {
	if s.flat {
		return Partition{Part: part, File: FlatFile(part)}
	}
	return Partition{Country: s.country, Part: part, File: CountryFile(s.slug, part)}
}

// scan drives one pass over the stream. When only is positive, the scan stops
// once it has passed that part and emits just that part.
func (p *Partitioner) scan(ctx context.Context, sc scope, only int, emit func(Partition) error) (ScanStats, error) {
	start := time.Now()
	defer func() { p.metrics.PartitionDuration.Observe(time.Since(start).Seconds()) }()

	var stats ScanStats
	seen := make(map[string]seenRecord)
	first := 1
	if only > 0 {
		first = only
	}
	cur := sc.newPartition(first)
	slot := 0

	for e, err := range p.source.Stream(ctx) {
		if err != nil {
			return stats, p.scanFailed(sc, cur.Part, err)
		}
		p.metrics.RecordsStreamed.Inc()

		if e.Err != nil {
			if sc.flat {
				stats.Malformed++
				p.metrics.MalformedRecords.Inc()
				p.logger.Debug("undecodable record skipped", "record_index", e.Index, "error", e.Err)
			}
			continue
		}
		if !sc.matches(e.Record) {
			continue
		}

		part := slot/p.pageSize + 1
		slot++
		stats.Matched++

		if only > 0 {
			if part < only {
				continue
			}
			if part > only {
				break
			}
		} else if part != cur.Part {
			if err := p.emit(sc, cur, emit); err != nil {
				return stats, err
			}
			cur = sc.newPartition(part)
		}

		if u, ok := p.cityURL(e, &stats, seen); ok {
			cur.URLs = append(cur.URLs, u)
		}
	}

	if stats.Matched == 0 {
		return stats, nil
	}
	if only > 0 && (only-1)*p.pageSize >= stats.Matched {
		return stats, nil
	}
	if err := p.emit(sc, cur, emit); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Partitioner) emit(sc scope, pt Partition, emit func(Partition) error) error {
	if err := emit(pt); err != nil {
		p.metrics.PartitionsGenerated.WithLabelValues(sc.mode(), "error").Inc()
		p.logger.Error("partition emit failed",
			"country", sc.country, "part", pt.Part, "file", pt.File, "error", err)
		return err
	}
	p.metrics.PartitionsGenerated.WithLabelValues(sc.mode(), "success").Inc()
	p.logger.Debug("partition generated",
		"country", sc.country, "part", pt.Part, "file", pt.File, "urls", len(pt.URLs))
	return nil
}

func (p *Partitioner) scanFailed(sc scope, part int, err error) error {
	p.metrics.PartitionsGenerated.WithLabelValues(sc.mode(), "error").Inc()
	attrs := []any{"country", sc.country, "part", part, "error", err}
	var se *domain.StreamError
	if errors.As(err, &se) {
		attrs = append(attrs, "record_index", se.Index)
	}
	p.logger.Error("partition scan aborted", attrs...)
	return err
}

// cityURL validates a matching record and renders its page URL, recording
// collisions along the way.
func (p *Partitioner) cityURL(e gazetteer.Entry, stats *ScanStats, seen map[string]seenRecord) (URL, bool) {
	rec, err := e.Record.Resolve(e.Index)
	if err != nil {
		stats.Malformed++
		p.metrics.MalformedRecords.Inc()
		p.logger.Debug("malformed record skipped", "record_index", e.Index, "error", err)
		return URL{}, false
	}

	path, ok := p.links.CityPath(rec)
	if !ok {
		stats.Unpublishable++
		p.metrics.UnpublishableRecords.Inc()
		p.logger.Debug("unpublishable record skipped",
			"record_index", e.Index, "name", rec.Name, "country", rec.CountryName)
		return URL{}, false
	}

	here := CollisionRecord{
		Index:   rec.Index,
		Name:    rec.Name,
		Geohash: geohash.EncodeWithPrecision(rec.Latitude, rec.Longitude, geohashPrecision),
	}
	if prev, dup := seen[path]; dup {
		c := Collision{Path: path, First: prev.CollisionRecord, Second: here, DistanceKm: prev.distanceKm(rec)}
		stats.Collisions = append(stats.Collisions, c)
		p.metrics.SlugCollisions.Inc()
		p.logger.Warn("slug collision",
			"path", path,
			"record_index", rec.Index,
			"first_index", prev.Index,
			"first_name", prev.Name,
			"name", rec.Name,
			"distance_km", c.DistanceKm,
		)
	} else {
		seen[path] = seenRecord{CollisionRecord: here, lat: rec.Latitude, lng: rec.Longitude}
	}

	stats.Published++
	return URL{
		Loc:        p.links.Page(path),
		ChangeFreq: cityChangeFreq,
		Priority:   cityPriority,
	}, true
}

type seenRecord struct {
	CollisionRecord
	lat, lng float64
}

func (s seenRecord) distanceKm(rec domain.LocationRecord) float64 {
	a := s2.LatLngFromDegrees(s.lat, s.lng)
	b := s2.LatLngFromDegrees(rec.Latitude, rec.Longitude)
	return a.Distance(b).Radians() * earthRadiusKm
}
