package jobhandlers

import (
	"spindle/internal/mediainfo"
	"spindle/internal/store"
)

// fileInfoFromRecords builds the value the Policy Evaluator and Phase
// Executor operate on from a file's persisted row plus its current track
// set, the inverse of what a fresh probe (internal/externaltool.Prober)
// produces before it is persisted.
func fileInfoFromRecords(file *store.FileRecord, tracks []*store.TrackRecord) mediainfo.FileInfo {
	info := mediainfo.FileInfo{
		Path:            file.Path,
		ContainerFormat: file.ContainerFormat,
		SizeBytes:       file.SizeBytes,
		ContainerTags:   file.ContainerTags,
		Tracks:          make([]mediainfo.Track, 0, len(tracks)),
	}
	for _, t := range tracks {
		track := mediainfo.Track{
			Index:    t.TrackIndex,
			Kind:     mediainfo.TrackKind(t.Kind),
			Codec:    t.Codec,
			Language: t.Language,
			Title:    t.Title,
			Default:  t.Default,
			Forced:   t.Forced,
			Layout:   t.Layout,
			Color: mediainfo.ColorInfo{
				Transfer:  t.ColorTransfer,
				Primaries: t.ColorPrimaries,
				Space:     t.ColorSpace,
				Range:     t.ColorRange,
			},
		}
		if t.Channels != nil {
			track.Channels = *t.Channels
		}
		if t.Width != nil {
			track.Width = *t.Width
		}
		if t.Height != nil {
			track.Height = *t.Height
		}
		if t.FrameRateAvg != nil {
			track.FrameRateAvg = *t.FrameRateAvg
		}
		if t.FrameRateReal != nil {
			track.FrameRateReal = *t.FrameRateReal
		}
		if t.BitRate != nil {
			track.BitRate = *t.BitRate
		}
		if t.DurationSec != nil {
			track.DurationSec = *t.DurationSec
		}
		if track.DurationSec > info.DurationSec {
			info.DurationSec = track.DurationSec
		}
		info.Tracks = append(info.Tracks, track)
	}
	return info
}

// tracksFromFileInfo is the inverse conversion, used after a fresh probe
// to persist the discovered track layout (store.ReplaceTracks).
func tracksFromFileInfo(fileID int64, info mediainfo.FileInfo) []store.TrackRecord {
	recs := make([]store.TrackRecord, 0, len(info.Tracks))
	for _, t := range info.Tracks {
		rec := store.TrackRecord{
			FileID:         fileID,
			TrackIndex:     t.Index,
			Kind:           store.TrackKind(t.Kind),
			Codec:          t.Codec,
			Language:       t.Language,
			Title:          t.Title,
			Default:        t.Default,
			Forced:         t.Forced,
			Layout:         t.Layout,
			ColorTransfer:  t.Color.Transfer,
			ColorPrimaries: t.Color.Primaries,
			ColorSpace:     t.Color.Space,
			ColorRange:     t.Color.Range,
		}
		if t.Channels != 0 {
			v := t.Channels
			rec.Channels = &v
		}
		if t.Width != 0 {
			v := t.Width
			rec.Width = &v
		}
		if t.Height != 0 {
			v := t.Height
			rec.Height = &v
		}
		if t.FrameRateAvg != 0 {
			v := t.FrameRateAvg
			rec.FrameRateAvg = &v
		}
		if t.FrameRateReal != 0 {
			v := t.FrameRateReal
			rec.FrameRateReal = &v
		}
		if t.BitRate != 0 {
			v := t.BitRate
			rec.BitRate = &v
		}
		if t.DurationSec != 0 {
			v := t.DurationSec
			rec.DurationSec = &v
		}
		recs = append(recs, rec)
	}
	return recs
}
