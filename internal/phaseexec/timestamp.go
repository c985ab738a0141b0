package phaseexec

import (
	"os"
	"time"

	"spindle/internal/corerr"
	"spindle/internal/policy"
)

// resolveTimestamp is the pure decision half of the file-timestamp
// operation (spec §4.4): given a mode, a fallback date-source order, and
// the resolved date values available from plugin metadata, it decides
// what mtime (if any) the file should end up with. now is passed in
// rather than read from the clock so the decision stays testable.
func resolveTimestamp(cfg policy.FileTimestampConfig, sources map[policy.DateSource]string, now time.Time) (target time.Time, apply bool) {
	switch cfg.Mode {
	case policy.TimestampPreserve, "":
		return time.Time{}, false
	case policy.TimestampNow:
		return now, true
	case policy.TimestampReleaseDate:
		order := cfg.DateSourceOrder
		if len(order) == 0 {
			order = policy.DefaultDateSourceOrder
		}
		for _, src := range order {
			raw, ok := sources[src]
			if !ok || raw == "" {
				continue
			}
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				return t, true
			}
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t, true
			}
		}
		// No configured date source resolved to a usable value.
		switch cfg.OnMissingDate {
		case policy.TimestampNow:
			return now, true
		default:
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}
}

// applyTimestamp performs the file-timestamp operation's I/O half: it
// resolves the target mtime and, when one applies, sets it via Chtimes
// (atime left as reported by the filesystem).
func applyTimestamp(path string, cfg policy.FileTimestampConfig, sources map[policy.DateSource]string, now time.Time) error {
	target, apply := resolveTimestamp(cfg, sources, now)
	if !apply {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return corerr.New(corerr.FilesystemError, "phaseexec", "stat file for timestamp", err)
	}
	if err := os.Chtimes(path, time.Time{}, target); err != nil {
		return corerr.New(corerr.FilesystemError, "phaseexec", "apply file timestamp", err)
	}
	return nil
}
