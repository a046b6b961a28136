package gazetteer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

// CodeTables maps GeoNames codes to display names. Keys are lower-cased
// country codes, and "cc.admin1" for first-level regions.
type CodeTables struct {
	Countries map[string]string
	Admin1    map[string]string
}

// LoadCodeTables reads the country CSV (with Code and Name columns) and the
// tab separated admin1CodesASCII table.
func LoadCodeTables(countryCSV, admin1 io.Reader) (*CodeTables, error) {
	countries, err := readCountryCodes(countryCSV)
	if err != nil {
		return nil, fmt.Errorf("country codes: %w", err)
	}
	regions, err := readAdmin1Codes(admin1)
	if err != nil {
		return nil, fmt.Errorf("admin1 codes: %w", err)
	}
	return &CodeTables{Countries: countries, Admin1: regions}, nil
}

func readCountryCodes(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	codeCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "Code":
			codeCol = i
		case "Name":
			nameCol = i
		}
	}
	if codeCol < 0 || nameCol < 0 {
		return nil, errors.New("header must contain Code and Name columns")
	}

	out := make(map[string]string)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) <= codeCol || len(row) <= nameCol {
			continue
		}
		code := strings.ToLower(strings.TrimSpace(row[codeCol]))
		if code != "" {
			out[code] = strings.TrimSpace(row[nameCol])
		}
	}
}

func readAdmin1Codes(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		code, rest, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "\t")
		cc, adm, ok := strings.Cut(code, ".")
		if !ok || name == "" {
			continue
		}
		out[strings.ToLower(cc)+"."+adm] = name
	}
	return out, sc.Err()
}

// ResolveStats summarizes one resolver run.
type ResolveStats struct {
	Records             int
	UnresolvedCountries int
	UnresolvedRegions   int
}

type geonamesCity struct {
	Name        string            `json:"name"`
	Latitude    domain.Coordinate `json:"latitude"`
	Longitude   domain.Coordinate `json:"longitude"`
	CountryCode string            `json:"countryCode"`
	Admin1Code  string            `json:"admin1Code"`
}

// Resolver turns the population-filtered GeoNames city array into the
// resolved gazetteer consumed by Loader.
type Resolver struct {
	tables *CodeTables
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given code tables.
func NewResolver(tables *CodeTables, logger *slog.Logger) *Resolver {
	return &Resolver{tables: tables, logger: logger}
}

// Resolve streams cities from in and writes the resolved array to out, one
// record per element, in input order. Country names are normalized for
// display; codes missing from the tables are written as null.
func (r *Resolver) Resolve(ctx context.Context, in io.Reader, out io.Writer) (ResolveStats, error) {
	var stats ResolveStats
	w := bufio.NewWriter(out)
	if _, err := w.WriteString("[\n"); err != nil {
		return stats, err
	}

	var writeErr error
	it := jsoniter.Parse(json, in, readBufferSize)
	err := eachElement(ctx, it, func(index int, raw []byte) bool {
		var city geonamesCity
		if err := json.Unmarshal(raw, &city); err != nil {
			r.logger.Warn("skipping undecodable city", "record_index", index, "error", err)
			return true
		}

		rec := r.resolveCity(city, &stats)
		data, err := domain.MarshalRecord(rec)
		if err != nil {
			writeErr = fmt.Errorf("encode record %d: %w", index, err)
			return false
		}
		if stats.Records > 0 {
			if _, err := w.WriteString(",\n"); err != nil {
				writeErr = err
				return false
			}
		}
		if _, err := w.Write(data); err != nil {
			writeErr = err
			return false
		}
		stats.Records++
		if stats.Records%10000 == 0 {
			r.logger.Info("resolving cities", "processed", stats.Records)
		}
		return true
	})
	if err != nil {
		return stats, err
	}
	if writeErr != nil {
		return stats, writeErr
	}

	if _, err := w.WriteString("\n]\n"); err != nil {
		return stats, err
	}
	if err := w.Flush(); err != nil {
		return stats, err
	}

	r.logger.Info("resolve complete",
		"records", stats.Records,
		"unresolved_countries", stats.UnresolvedCountries,
		"unresolved_regions", stats.UnresolvedRegions,
	)
	return stats, nil
}

func (r *Resolver) resolveCity(city geonamesCity, stats *ResolveStats) domain.RawRecord {
	cc := strings.ToLower(strings.TrimSpace(city.CountryCode))
	rec := domain.RawRecord{
		Name:        city.Name,
		CountryCode: city.CountryCode,
		Latitude:    city.Latitude,
		Longitude:   city.Longitude,
	}

	if name, ok := r.tables.Countries[cc]; ok && name != "" {
		rec.CountryName = domain.NormalizeCountryName(name)
	} else {
		stats.UnresolvedCountries++
	}

	if city.Admin1Code != "" {
		if name, ok := r.tables.Admin1[cc+"."+city.Admin1Code]; ok {
			rec.AdminRegion = name
		}
	}
	if rec.AdminRegion == "" {
		stats.UnresolvedRegions++
	}
	return rec
}
