package domain

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

//go:embed data/country_names.json
var countryNamesJSON []byte

// countryNames is the direct remapping table, parsed on first use.
var countryNames = sync.OnceValue(func() map[string]string {
	m := make(map[string]string)
	if err := json.Unmarshal(countryNamesJSON, &m); err != nil {
		panic("domain: embedded country name table: " + err.Error())
	}
	return m
})

var (
	leadingThe       = regexp.MustCompile(`(?i)^the\s+`)
	trailingOf       = regexp.MustCompile(`(?i)\s+of$`)
	parenthetical    = regexp.MustCompile(`\s*\(.*\)\s*$`)
	leadingOfPrefix  = regexp.MustCompile(`^.+? of\s+`)
	leadingAndPrefix = regexp.MustCompile(`^.+? and\s+`)
)

// countryCleanupRules run in order; later rules depend on earlier ones having
// already cut commas and parentheticals.
var countryCleanupRules = []func(string) string{
	func(s string) string { return leadingThe.ReplaceAllString(s, "") },
	func(s string) string { return trailingOf.ReplaceAllString(s, "") },
	func(s string) string {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return s[:i]
		}
		return s
	},
	func(s string) string { return parenthetical.ReplaceAllString(s, "") },
	func(s string) string { return leadingOfPrefix.ReplaceAllString(s, "") },
	func(s string) string { return leadingAndPrefix.ReplaceAllString(s, "") },
	strings.TrimSpace,
}

// NormalizeCountryName maps an ISO country name to the display name used in
// URLs and pages. Names in the direct table bypass the generic rules.
func NormalizeCountryName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	if mapped, ok := countryNames()[name]; ok {
		return mapped
	}
	for _, rule := range countryCleanupRules {
		name = rule(name)
	}
	if name == "" {
		return strings.TrimSpace(raw)
	}
	return name
}
