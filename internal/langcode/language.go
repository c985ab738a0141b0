package langcode

import (
	"strings"

	"golang.org/x/text/language"
)

// iso2to3 covers the common ISO 639-1 two-letter codes that golang.org/x/text
// exposes but that this library needs as a flat lookup without constructing
// a language.Tag for every call on the hot evaluator path.
var iso2to3 = map[string]string{
	"en": "eng", "ja": "jpn", "fr": "fra", "de": "deu", "es": "spa",
	"it": "ita", "pt": "por", "ru": "rus", "zh": "zho", "ko": "kor",
	"ar": "ara", "hi": "hin", "nl": "nld", "sv": "swe", "no": "nor",
	"da": "dan", "fi": "fin", "pl": "pol", "tr": "tur", "el": "ell",
	"he": "heb", "th": "tha", "vi": "vie", "cs": "ces", "hu": "hun",
	"ro": "ron", "uk": "ukr", "id": "ind", "ms": "msa",
}

// aliases3 covers common non-canonical 3-letter spellings (bibliographic
// vs. terminologic ISO 639-2 codes, and loose variants seen in container
// tags in the wild).
var aliases3 = map[string]string{
	"ger": "deu", "fre": "fra", "dut": "nld", "chi": "zho", "rum": "ron",
	"per": "fas", "fas": "fas", "cze": "ces", "gre": "ell", "und": "und",
	"mis": "mis", "zxx": "zxx",
}

// Normalize converts an input language code to its canonical 3-letter
// (ISO 639-2/T where one exists) form. An input that cannot be recognized
// is returned unchanged (lowercased, trimmed) rather than replaced with an
// "undefined" marker — callers must not silently discard unrecognized
// codes (spec §8).
func Normalize(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return trimmed
	}
	if canonical, ok := aliases3[trimmed]; ok {
		return canonical
	}
	if len(trimmed) == 2 {
		if canonical, ok := iso2to3[trimmed]; ok {
			return canonical
		}
	}
	if len(trimmed) == 3 {
		// Already plausible ISO 639-2; it is returned as-is whether or not
		// golang.org/x/text's base registry knows it, so no sentinel is
		// ever substituted.
		if _, err := language.ParseBase(trimmed); err == nil {
			return trimmed
		}
		return trimmed
	}
	// Fall back to golang.org/x/text's tag parser for longer/looser input
	// (e.g. "english", BCP-47 tags with region/script subtags).
	if tag, err := language.Parse(trimmed); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			if iso3, err := base.ISO3(); err == nil {
				return iso3
			}
		}
	}
	return trimmed
}

// Equal reports whether two language codes normalize to the same canonical
// form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// PreferenceRank returns the index of code within preference (lower is more
// preferred), comparing by normalized form. ok is false when code matches
// nothing in preference.
func PreferenceRank(code string, preference []string) (rank int, ok bool) {
	normalized := Normalize(code)
	for i, want := range preference {
		if Normalize(want) == normalized {
			return i, true
		}
	}
	return -1, false
}
