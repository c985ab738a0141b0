// Package mediainfo defines the value type the Introspector interface
// returns. The introspector itself — the thing that actually runs ffprobe
// or an equivalent — is an external collaborator consumed through an
// interface (see internal/externaltool); this package only owns the shape
// of its result.
package mediainfo

// TrackKind is the closed set of media stream kinds a file can carry.
type TrackKind string

const (
	TrackVideo      TrackKind = "video"
	TrackAudio      TrackKind = "audio"
	TrackSubtitle   TrackKind = "subtitle"
	TrackAttachment TrackKind = "attachment"
	TrackOther      TrackKind = "other"
)

// ColorInfo carries the HDR-relevant color metadata for a video track.
type ColorInfo struct {
	Transfer  string // e.g. "smpte2084" (PQ), "arib-std-b67" (HLG)
	Primaries string
	Space     string
	Range     string
}

// IsHDR reports whether the color transfer/primaries quartet indicates an
// HDR signal (PQ, HLG, or Dolby Vision side-data is detected upstream and
// folded into Transfer as "dolby-vision" by the introspector).
func (c ColorInfo) IsHDR() bool {
	switch c.Transfer {
	case "smpte2084", "arib-std-b67", "dolby-vision":
		return true
	default:
		return false
	}
}

// Track is one stream within an introspected file.
type Track struct {
	Index       int
	Kind        TrackKind
	Codec       string
	Language    string
	Title       string
	Default     bool
	Forced      bool
	DurationSec float64

	// Audio-specific.
	Channels int
	Layout   string

	// Video-specific.
	Width         int
	Height        int
	FrameRateAvg  float64 // avg_frame_rate
	FrameRateReal float64 // r_frame_rate
	Color         ColorInfo
	BitRate       int64 // 0 when not reported by the introspector
}

// FileInfo is the introspector's result for one file: container format,
// tracks, and container-level tags.
type FileInfo struct {
	Path            string
	ContainerFormat string
	SizeBytes       int64
	DurationSec     float64
	Tracks          []Track
	ContainerTags   map[string]string
}

// VideoTracks returns the subset of Tracks whose Kind is video.
func (f FileInfo) VideoTracks() []Track {
	return f.tracksOfKind(TrackVideo)
}

// AudioTracks returns the subset of Tracks whose Kind is audio.
func (f FileInfo) AudioTracks() []Track {
	return f.tracksOfKind(TrackAudio)
}

// SubtitleTracks returns the subset of Tracks whose Kind is subtitle.
func (f FileInfo) SubtitleTracks() []Track {
	return f.tracksOfKind(TrackSubtitle)
}

func (f FileInfo) tracksOfKind(kind TrackKind) []Track {
	var out []Track
	for _, t := range f.Tracks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// PrimaryVideo selects the primary video track: the first video stream
// with the largest frame area, per spec §4.3's multi-video-stream rule.
// ok is false when no video track is present.
func (f FileInfo) PrimaryVideo() (track Track, index int, ok bool) {
	best := -1
	bestArea := -1
	for i, t := range f.Tracks {
		if t.Kind != TrackVideo {
			continue
		}
		area := t.Width * t.Height
		if area > bestArea {
			bestArea = area
			best = i
		}
	}
	if best < 0 {
		return Track{}, -1, false
	}
	return f.Tracks[best], best, true
}
