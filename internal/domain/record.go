package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// RawRecord is one element of the resolved gazetteer array as stored on disk.
// Missing or null fields decode to their zero value; use Resolve to obtain a
// publishable LocationRecord.
type RawRecord struct {
	Name        string     `json:"name"`
	CountryCode string     `json:"countryCode,omitempty"`
	CountryName string     `json:"resolvedCountryName"`
	AdminRegion string     `json:"resolvedAdmin1Code"`
	Latitude    Coordinate `json:"latitude"`
	Longitude   Coordinate `json:"longitude"`
}

// LocationRecord is a publishable gazetteer entry.
type LocationRecord struct {
	Index           int // position in the source array
	Name            string
	CountryName     string
	AdminRegionName string
	Latitude        float64
	Longitude       float64
}

// Coordinate is a latitude or longitude that may be absent. It decodes from a
// JSON number, a numeric string, null, or an empty string. Any other value
// decodes as absent so the record still reaches Resolve and is reported as
// malformed there.
type Coordinate struct {
	Value float64
	Valid bool
}

// NewCoordinate returns a present coordinate.
func NewCoordinate(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Coordinate{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*c = Coordinate{Value: v, Valid: true}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Absent coordinates encode as null.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'f', -1, 64)), nil
}

// Resolve validates the record found at position index and converts it into a
// LocationRecord. It returns a *MalformedRecordError naming every missing or
// invalid field.
func (r RawRecord) Resolve(index int) (LocationRecord, error) {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.CountryName) == "" {
		missing = append(missing, "countryName")
	}
	if strings.TrimSpace(r.AdminRegion) == "" {
		missing = append(missing, "adminRegionName")
	}
	if !r.Latitude.Valid {
		missing = append(missing, "latitude")
	}
	if !r.Longitude.Valid {
		missing = append(missing, "longitude")
	}
	if r.Latitude.Valid && r.Longitude.Valid && !s2.LatLngFromDegrees(r.Latitude.Value, r.Longitude.Value).IsValid() {
		missing = append(missing, "coordinates")
	}
	if len(missing) > 0 {
		return LocationRecord{}, &MalformedRecordError{Index: index, Name: r.Name, Fields: missing}
	}

	return LocationRecord{
		Index:           index,
		Name:            r.Name,
		CountryName:     r.CountryName,
		AdminRegionName: r.AdminRegion,
		Latitude:        r.Latitude.Value,
		Longitude:       r.Longitude.Value,
	}, nil
}

// MarshalRecord encodes a RawRecord the way the resolver writes it, with null
// for unresolved names.
func MarshalRecord(r RawRecord) ([]byte, error) {
	out := struct {
		Name        string     `json:"name"`
		CountryCode string     `json:"countryCode"`
		CountryName *string    `json:"resolvedCountryName"`
		AdminRegion *string    `json:"resolvedAdmin1Code"`
		Latitude    Coordinate `json:"latitude"`
		Longitude   Coordinate `json:"longitude"`
	}{
		Name:        r.Name,
		CountryCode: r.CountryCode,
		CountryName: nullable(r.CountryName),
		AdminRegion: nullable(r.AdminRegion),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
	return json.Marshal(out)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
