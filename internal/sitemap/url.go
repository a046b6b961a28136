package sitemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

// LocationsPath is the site section under which every location page lives.
const LocationsPath = "/wetbulb-temperature"

// PathOrder selects the segment order of city page paths.
type PathOrder string

const (
	// CountryFirst builds /wetbulb-temperature/{country}/{state}/{city}.
	CountryFirst PathOrder = "country-first"
	// CityFirst builds /wetbulb-temperature/{city}/{state}/{country}.
	CityFirst PathOrder = "city-first"
)

// ParsePathOrder validates a configured path order.
func ParsePathOrder(s string) (PathOrder, error) {
	switch PathOrder(strings.ToLower(strings.TrimSpace(s))) {
	case CountryFirst, "":
		return CountryFirst, nil
	case CityFirst:
		return CityFirst, nil
	default:
		return "", fmt.Errorf("unknown path order %q: want %s or %s", s, CountryFirst, CityFirst)
	}
}

// Links builds absolute page URLs and sitemap file names for one site.
type Links struct {
	base  string
	order PathOrder
}

// NewLinks creates a Links for baseURL. A trailing slash on baseURL is ignored.
func NewLinks(baseURL string, order PathOrder) Links {
	if order == "" {
		order = CountryFirst
	}
	return Links{base: strings.TrimRight(baseURL, "/"), order: order}
}

// Base returns the site base URL without a trailing slash.
func (l Links) Base() string { return l.base }

// Page returns the absolute URL of a site-relative path.
func (l Links) Page(path string) string {
	if path == "" || path == "/" {
		return l.base
	}
	return l.base + path
}

// CityPath returns the three-segment location path for rec. ok is false when
// any segment slugs to the empty string.
func (l Links) CityPath(rec domain.LocationRecord) (path string, ok bool) {
	country := domain.Slug(rec.CountryName)
	state := domain.Slug(rec.AdminRegionName)
	city := domain.Slug(rec.Name)
	if country == "" || state == "" || city == "" {
		return "", false
	}
	if l.order == CityFirst {
		return LocationsPath + "/" + city + "/" + state + "/" + country, true
	}
	return LocationsPath + "/" + country + "/" + state + "/" + city, true
}

// CountryPath returns the category page path of a country.
func (l Links) CountryPath(country string) (string, bool) {
	slug := domain.Slug(country)
	if slug == "" {
		return "", false
	}
	return LocationsPath + "/" + slug, true
}

// StatePath returns the category page path of a state within a country.
func (l Links) StatePath(country, state string) (string, bool) {
	c, s := domain.Slug(country), domain.Slug(state)
	if c == "" || s == "" {
		return "", false
	}
	return LocationsPath + "/" + c + "/" + s, true
}

// CountryFile returns the file name of partition part of a country. Part 1
// carries no suffix.
func CountryFile(countrySlug string, part int) string {
	if part <= 1 {
		return "sitemap-country-" + countrySlug + ".xml"
	}
	return "sitemap-country-" + countrySlug + "-" + strconv.Itoa(part) + ".xml"
}

// FlatFile returns the file name of partition part in flat mode.
func FlatFile(part int) string {
	return "sitemap-locations-" + strconv.Itoa(part) + ".xml"
}

// Fixed document file names.
const (
	MainFile       = "sitemap-main.xml"
	CategoriesFile = "sitemap-categories.xml"
	IndexFile      = "sitemap-index.xml"
	RootIndexFile  = "sitemap.xml"
	RobotsFile     = "robots.txt"
)

// ParseCountryFile splits a requested country file name back into slug and
// part. known reports whether a slug belongs to a country; it lets a country
// whose own slug ends in "-<digits>" win over the part suffix reading.
func ParseCountryFile(name string, known func(slug string) bool) (slug string, part int, err error) {
	rest, ok := strings.CutPrefix(name, "sitemap-country-")
	if !ok {
		return "", 0, &domain.InvalidParameterError{Param: "file", Value: name, Reason: "not a country sitemap"}
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok || rest == "" {
		return "", 0, &domain.InvalidParameterError{Param: "file", Value: name, Reason: "not a country sitemap"}
	}

	if known(rest) {
		return rest, 1, nil
	}
	if i := strings.LastIndexByte(rest, '-'); i > 0 {
		suffix := rest[i+1:]
		if n, convErr := strconv.Atoi(suffix); convErr == nil {
			if strconv.Itoa(n) != suffix {
				return "", 0, &domain.InvalidParameterError{Param: "part", Value: suffix, Reason: "part suffix must be written without sign or leading zeros"}
			}
			if n < 2 {
				return "", 0, &domain.InvalidParameterError{Param: "part", Value: suffix, Reason: "part suffix starts at 2"}
			}
			return rest[:i], n, nil
		}
	}
	return rest, 1, nil
}

// ParsePart validates a part number given as a request parameter. An empty
// value means part 1.
func ParsePart(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &domain.InvalidParameterError{Param: "part", Value: raw, Reason: "must be a positive integer"}
	}
	return n, nil
}
