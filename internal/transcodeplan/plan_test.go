package transcodeplan

import (
	"testing"

	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

func TestPlan_SkipCompliantFile(t *testing.T) {
	info := mediainfo.FileInfo{
		ContainerFormat: "mkv",
		Tracks: []mediainfo.Track{
			{Index: 0, Kind: mediainfo.TrackVideo, Codec: "hevc", Width: 1920, Height: 1080, BitRate: 8_000_000},
			{Index: 1, Kind: mediainfo.TrackAudio, Codec: "aac", Language: "eng"},
		},
	}
	cfg := TranscodePolicyConfig{
		TargetVideoCodec: "hevc",
		Skip: &SkipCondition{
			CodecMatches:     []string{"hevc", "h265"},
			ResolutionWithin: "1080p",
			BitrateUnder:     "15M",
		},
	}

	got, err := Plan(info, cfg, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !got.ShouldSkip {
		t.Fatalf("expected ShouldSkip=true, got plan: %+v", got)
	}
	if got.NeedsTranscode {
		t.Fatalf("expected no transcode work when skipping")
	}
}

func TestPlan_H264ToHEVCWithScaling(t *testing.T) {
	info := mediainfo.FileInfo{
		Tracks: []mediainfo.Track{
			{Index: 0, Kind: mediainfo.TrackVideo, Codec: "h264", Width: 3840, Height: 2160},
			{Index: 1, Kind: mediainfo.TrackAudio, Codec: "eac3", Channels: 6, Language: "eng"},
		},
	}
	cfg := TranscodePolicyConfig{
		TargetVideoCodec: "hevc",
		MaxResolution:    "1080p",
		Audio: &AudioTranscodeConfig{
			PreserveCodecs: []string{"eac3"},
		},
	}

	got, err := Plan(info, cfg, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !got.NeedsTranscode || !got.NeedsScale {
		t.Fatalf("expected transcode+scale, got %+v", got)
	}
	if got.TargetWidth != 1920 || got.TargetHeight != 1080 {
		t.Fatalf("expected 1920x1080 target, got %dx%d", got.TargetWidth, got.TargetHeight)
	}
	if len(got.Audio.Tracks) != 1 || got.Audio.Tracks[0].Decision != AudioCopy {
		t.Fatalf("expected eac3 track to be copied, got %+v", got.Audio.Tracks)
	}
}

func TestPlan_OddDimensionsRoundDownToEven(t *testing.T) {
	info := mediainfo.FileInfo{
		Tracks: []mediainfo.Track{
			{Index: 0, Kind: mediainfo.TrackVideo, Codec: "h264", Width: 1921, Height: 1081},
		},
	}
	cfg := TranscodePolicyConfig{MaxResolution: "1080p"}

	got, err := Plan(info, cfg, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if got.TargetWidth%2 != 0 || got.TargetHeight%2 != 0 {
		t.Fatalf("expected even target dimensions, got %dx%d", got.TargetWidth, got.TargetHeight)
	}
}

func TestPlan_RemovedAudioTrackReflectedInAudioPlan(t *testing.T) {
	info := mediainfo.FileInfo{
		Tracks: []mediainfo.Track{
			{Index: 0, Kind: mediainfo.TrackVideo, Codec: "hevc", Width: 1280, Height: 720},
			{Index: 1, Kind: mediainfo.TrackAudio, Codec: "ac3", Language: "jpn"},
			{Index: 2, Kind: mediainfo.TrackAudio, Codec: "aac", Language: "eng"},
		},
	}
	dispositions := []planmodel.TrackDisposition{
		{TrackIndex: 1, State: planmodel.Removed, Reason: "language not preferred"},
		{TrackIndex: 2, State: planmodel.Kept},
	}

	got, err := Plan(info, TranscodePolicyConfig{}, dispositions)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	var sawRemoved, sawKept bool
	for _, a := range got.Audio.Tracks {
		if a.TrackIndex == 1 && a.Decision == AudioRemove {
			sawRemoved = true
		}
		if a.TrackIndex == 2 && a.Decision == AudioCopy {
			sawKept = true
		}
	}
	if !sawRemoved || !sawKept {
		t.Fatalf("expected track 1 removed and track 2 copied, got %+v", got.Audio.Tracks)
	}
}

func TestPlan_TwoPassDowngradedForUnsupportedCodec(t *testing.T) {
	info := mediainfo.FileInfo{
		Tracks: []mediainfo.Track{{Index: 0, Kind: mediainfo.TrackVideo, Codec: "h264", Width: 1280, Height: 720}},
	}
	cfg := TranscodePolicyConfig{TargetVideoCodec: "av1", TwoPass: true}

	got, err := Plan(info, cfg, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if got.TwoPass {
		t.Fatalf("expected two-pass to be downgraded for av1")
	}
	if !got.TwoPassDowngraded {
		t.Fatalf("expected TwoPassDowngraded=true")
	}
}

func TestPlan_HDRPreservedWarningOnScale(t *testing.T) {
	info := mediainfo.FileInfo{
		Tracks: []mediainfo.Track{{
			Index: 0, Kind: mediainfo.TrackVideo, Codec: "hevc", Width: 3840, Height: 2160,
			Color: mediainfo.ColorInfo{Transfer: "smpte2084"},
		}},
	}
	cfg := TranscodePolicyConfig{MaxResolution: "1080p"}

	got, err := Plan(info, cfg, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !got.NeedsScale {
		t.Fatalf("expected scale to be needed")
	}
	foundWarning := false
	for _, w := range got.Warnings {
		if w == "HDR source is being scaled; visual quality may suffer" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected HDR+scale warning, got %v", got.Warnings)
	}
}
