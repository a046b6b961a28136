// Package domain models the resolved gazetteer and the rules that turn place
// names into sitemap URLs.
//
// # Data Source
//
// The gazetteer is built offline from GeoNames: allCountries.txt is filtered to
// populated places (feature class P) with population >= 1000, then the country
// and first-level admin codes are resolved to names using countrycodes.csv and
// admin1CodesASCII.txt. The result is one JSON array of records:
//
//	{"name": "São Paulo", "countryCode": "BR", "resolvedCountryName": "Brazil",
//	 "resolvedAdmin1Code": "Sao Paulo", "latitude": "-23.5475", "longitude": "-46.63611"}
//
// Coordinates arrive as JSON numbers or numeric strings depending on which
// converter produced the file. Both are accepted, see [Coordinate].
//
// # Publishable Records
//
// A record is published only when name, country, admin region, latitude and
// longitude are all present and the coordinates are a valid WGS-84 position.
// Anything else is a malformed record: it is counted and skipped, never
// rewritten into zero values. See [RawRecord.Resolve].
//
// # Slugs
//
// URL segments are produced by [Slug]: lowercase ASCII from [a-z0-9-] with
// diacritics transliterated to their base letters. Mixed-script names keep the
// longest run of Latin-only tokens, so "Tokyo (東京)" becomes "tokyo". A name
// with no Latin run at all yields an empty slug and the record is treated as
// unresolvable.
//
// # Country Names
//
// ISO country names are awkward in URLs ("Korea, Republic of"). They are
// rewritten once at resolve time by [NormalizeCountryName]: a direct table for
// known names, then ordered generic cleanup rules for everything else.
package domain
