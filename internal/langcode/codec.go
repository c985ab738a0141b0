// Package langcode holds the pure lookup helpers the core depends on:
// alias-aware codec matching, bitrate-string parsing, and language-code
// normalization to a canonical 3-letter form. None of these do I/O; they
// are deterministic functions over small literal tables.
package langcode

import (
	"strconv"
	"strings"
)

// codecAliases groups codec identifiers that name the same encoding under
// different spellings. Matching is symmetric and case-insensitive.
var codecAliases = [][]string{
	{"hevc", "h265", "x265", "h.265"},
	{"h264", "avc", "x264", "h.264"},
	{"av1", "aom-av1", "libaom-av1"},
	{"vp9", "libvpx-vp9"},
	{"eac3", "ec-3", "e-ac-3", "eac-3"},
	{"ac3", "ac-3"},
	{"aac", "mp4a"},
	{"truehd", "true-hd"},
	{"dts", "dca"},
}

var codecAliasIndex = buildCodecAliasIndex()

func buildCodecAliasIndex() map[string]int {
	idx := make(map[string]int)
	for group, names := range codecAliases {
		for _, name := range names {
			idx[strings.ToLower(name)] = group
		}
	}
	return idx
}

// VideoCodecMatches reports whether current and target name the same codec
// family, accounting for common aliasing (hevc/h265/x265, h264/avc/x264,
// ...). An unrecognized codec only matches an exact (case-insensitive)
// string match.
func VideoCodecMatches(current, target string) bool {
	return CodecMatches(current, target)
}

// CodecMatches is alias-aware codec equality, usable for both video and
// audio codec comparisons.
func CodecMatches(current, target string) bool {
	current = strings.ToLower(strings.TrimSpace(current))
	target = strings.ToLower(strings.TrimSpace(target))
	if current == "" || target == "" {
		return false
	}
	if current == target {
		return true
	}
	cGroup, cOK := codecAliasIndex[current]
	tGroup, tOK := codecAliasIndex[target]
	return cOK && tOK && cGroup == tGroup
}

// CodecMatchesAny reports whether current alias-matches any pattern in
// patterns.
func CodecMatchesAny(current string, patterns []string) bool {
	for _, pattern := range patterns {
		if CodecMatches(current, pattern) {
			return true
		}
	}
	return false
}

// resolutionPresets maps a named resolution preset to its maximum width and
// height, matching the presets spec.md §4.3 names explicitly.
var resolutionPresets = map[string][2]int{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"1440p": {2560, 1440},
	"4k":    {3840, 2160},
	"2160p": {3840, 2160},
	"8k":    {7680, 4320},
}

// ResolvePreset resolves a named resolution preset to its (width, height)
// maximum. ok is false for an unrecognized preset.
func ResolvePreset(name string) (width, height int, ok bool) {
	dims, found := resolutionPresets[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return 0, 0, false
	}
	return dims[0], dims[1], true
}

// ParseBitrate parses a human bitrate string ("15M", "8000k", "1500000")
// into bits per second. Accepts an optional case-insensitive k/m/g suffix.
func ParseBitrate(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	multiplier := int64(1)
	suffix := value[len(value)-1]
	switch suffix {
	case 'k', 'K':
		multiplier = 1_000
		value = value[:len(value)-1]
	case 'm', 'M':
		multiplier = 1_000_000
		value = value[:len(value)-1]
	case 'g', 'G':
		multiplier = 1_000_000_000
		value = value[:len(value)-1]
	}
	value = strings.TrimSpace(value)
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return int64(parsed * float64(multiplier)), true
}

// RoundEven rounds v down to the nearest even integer, never below zero.
// Most video codecs require even width/height.
func RoundEven(v int) int {
	if v < 0 {
		return 0
	}
	return v - (v % 2)
}
