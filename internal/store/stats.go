package store

import (
	"context"
	"errors"
	"time"

	"spindle/internal/corerr"
)

// RecordProcessingStats inserts a before/after summary row for one
// applied operation.
func (s *Store) RecordProcessingStats(ctx context.Context, rec *ProcessingStats) error {
	if rec == nil {
		return errors.New("processing stats record is nil")
	}
	now := time.Now().UTC()
	rec.CreatedAt = now

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO processing_stats (
			file_id, job_id, size_before, size_after,
			video_before, video_after, audio_before, audio_after, subtitle_before, subtitle_after,
			phase_durations_json, action_results_json,
			encoder_fps, encoder_bitrate, encoder_total_frames, encoder_type,
			hash_before, hash_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileID, nullableString(rec.JobID), rec.SizeBefore, rec.SizeAfter,
		rec.VideoBefore, rec.VideoAfter, rec.AudioBefore, rec.AudioAfter, rec.SubtitleBefore, rec.SubtitleAfter,
		rec.PhaseDurationsJSON, rec.ActionResultsJSON,
		nullableFloat64(rec.EncoderFPS), nullableInt64(rec.EncoderBitrate), nullableInt64(rec.EncoderTotalFrames),
		nullableString(string(rec.EncoderType)),
		nullableString(rec.HashBefore), nullableString(rec.HashAfter), now.Format(time.RFC3339Nano),
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "record processing stats", err)
	}
	return nil
}

// AggregateSavings sums size_before - size_after across every recorded
// operation, used for the library-wide savings report.
func (s *Store) AggregateSavings(ctx context.Context) (bytesSaved int64, fileCount int64, err error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COALESCE(SUM(size_before - size_after), 0), COUNT(1) FROM processing_stats`)
	if scanErr := row.Scan(&bytesSaved, &fileCount); scanErr != nil {
		return 0, 0, corerr.New(corerr.StoreIntegrity, "store", "aggregate savings", scanErr)
	}
	return bytesSaved, fileCount, nil
}
