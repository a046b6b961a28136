package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// nonLatinScript covers Arabic, Hangul Jamo, Hiragana, Katakana, CJK,
	// Hangul syllables, Cyrillic, Thai and Devanagari.
	nonLatinScript = regexp.MustCompile(`[\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{1100}-\x{11FF}\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{3400}-\x{4DBF}\x{4E00}-\x{9FFF}\x{AC00}-\x{D7AF}\x{0400}-\x{04FF}\x{0E00}-\x{0E7F}\x{0900}-\x{097F}]`)

	// tokenSeparators splits mixed-script names into candidate tokens.
	tokenSeparators = regexp.MustCompile(`[,()\[\]{}\s]+`)
)

// letterFolds covers Latin letters that do not decompose under NFKD.
var letterFolds = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'ø': "o",
	'đ': "d",
	'ð': "d",
	'ł': "l",
	'þ': "th",
	'ı': "i",
	'ħ': "h",
	'ŧ': "t",
	'ŋ': "n",
	'ĸ': "k",
	'&': " and ",
}

// Slug converts a place name into a URL path segment restricted to [a-z0-9-].
// It never fails; input without any Latin content yields "".
func Slug(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	folded := foldLatin(strings.ToLower(latinPortion(s)))

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	return b.String()
}

// ContainsNonLatin reports whether s contains characters from the non-Latin
// scripts that Slug cannot transliterate.
func ContainsNonLatin(s string) bool {
	return nonLatinScript.MatchString(s)
}

// latinPortion returns the longest contiguous run of Latin-only tokens when s
// mixes scripts. Ties keep the earliest run. Strings with no Latin run are
// returned unchanged.
func latinPortion(s string) string {
	if !ContainsNonLatin(s) {
		return s
	}

	var best, current []string
	for _, tok := range tokenSeparators.Split(s, -1) {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		if ContainsNonLatin(tok) {
			if len(current) > len(best) {
				best = current
			}
			current = nil
			continue
		}
		current = append(current, tok)
	}
	if len(current) > len(best) {
		best = current
	}

	if len(best) == 0 {
		return s
	}
	return strings.Join(best, " ")
}

// foldLatin strips combining marks after compatibility decomposition and
// expands the letters in letterFolds.
func foldLatin(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if rep, ok := letterFolds[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
