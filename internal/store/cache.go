package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spindle/internal/corerr"
)

// AcknowledgePlugin records that a plugin's enrichment of trackID was
// consumed, upserting on the (track, plugin, hash) unique key so the
// same acknowledgment recorded twice by concurrent workers is a no-op
// rather than a constraint violation.
func (s *Store) AcknowledgePlugin(ctx context.Context, trackID int64, pluginName, pluginHash string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO plugin_acknowledgments (track_id, plugin_name, plugin_hash, acknowledged_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (track_id, plugin_name, plugin_hash) DO UPDATE SET acknowledged_at = excluded.acknowledged_at`,
		trackID, pluginName, pluginHash, now,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "acknowledge plugin", err)
	}
	return nil
}

// IsPluginAcknowledged reports whether trackID has a recorded
// acknowledgment for pluginName at pluginHash.
func (s *Store) IsPluginAcknowledged(ctx context.Context, trackID int64, pluginName, pluginHash string) (bool, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM plugin_acknowledgments WHERE track_id = ? AND plugin_name = ? AND plugin_hash = ?`,
		trackID, pluginName, pluginHash,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, corerr.New(corerr.StoreIntegrity, "store", "check plugin acknowledgment", err)
	}
	return count > 0, nil
}

// UpsertLanguageAnalysis caches a language-detection result for a
// track, replacing any prior cached result for the same track.
func (s *Store) UpsertLanguageAnalysis(ctx context.Context, rec *LanguageAnalysisResult) error {
	if rec == nil {
		return errors.New("language analysis record is nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO language_analysis_results (track_id, primary_language, confidence, segments_json, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (track_id) DO UPDATE SET
			primary_language = excluded.primary_language,
			confidence = excluded.confidence,
			segments_json = excluded.segments_json,
			created_at = excluded.created_at`,
		rec.TrackID, rec.PrimaryLanguage, rec.Confidence, rec.SegmentsJSON, now,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "upsert language analysis", err)
	}
	return nil
}

// GetLanguageAnalysis returns the cached language-analysis result for
// trackID. Returns (nil, nil) when absent.
func (s *Store) GetLanguageAnalysis(ctx context.Context, trackID int64) (*LanguageAnalysisResult, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, track_id, primary_language, confidence, segments_json, created_at
		 FROM language_analysis_results WHERE track_id = ?`, trackID,
	)
	var rec LanguageAnalysisResult
	var createdAt string
	err := row.Scan(&rec.ID, &rec.TrackID, &rec.PrimaryLanguage, &rec.Confidence, &rec.SegmentsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get language analysis", err)
	}
	if t, err := parseTimeString(createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

// UpsertTranscription caches a transcription result for a track.
func (s *Store) UpsertTranscription(ctx context.Context, rec *TranscriptionResult) error {
	if rec == nil {
		return errors.New("transcription record is nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO transcription_results (track_id, language, confidence, text, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (track_id) DO UPDATE SET
			language = excluded.language,
			confidence = excluded.confidence,
			text = excluded.text,
			created_at = excluded.created_at`,
		rec.TrackID, rec.Language, rec.Confidence, rec.Text, now,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "upsert transcription", err)
	}
	return nil
}

// GetTranscription returns the cached transcription result for
// trackID. Returns (nil, nil) when absent.
func (s *Store) GetTranscription(ctx context.Context, trackID int64) (*TranscriptionResult, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, track_id, language, confidence, text, created_at
		 FROM transcription_results WHERE track_id = ?`, trackID,
	)
	var rec TranscriptionResult
	var createdAt string
	err := row.Scan(&rec.ID, &rec.TrackID, &rec.Language, &rec.Confidence, &rec.Text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get transcription", err)
	}
	if t, err := parseTimeString(createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

// UpsertTrackClassification caches a classifier verdict for a track
// (e.g. commentary vs. main audio).
func (s *Store) UpsertTrackClassification(ctx context.Context, rec *TrackClassificationResult) error {
	if rec == nil {
		return errors.New("track classification record is nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO track_classification_results (track_id, classification, confidence, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (track_id) DO UPDATE SET
			classification = excluded.classification,
			confidence = excluded.confidence,
			created_at = excluded.created_at`,
		rec.TrackID, rec.Classification, rec.Confidence, now,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "upsert track classification", err)
	}
	return nil
}

// GetTrackClassification returns the cached classification for
// trackID. Returns (nil, nil) when absent.
func (s *Store) GetTrackClassification(ctx context.Context, trackID int64) (*TrackClassificationResult, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, track_id, classification, confidence, created_at
		 FROM track_classification_results WHERE track_id = ?`, trackID,
	)
	var rec TrackClassificationResult
	var createdAt string
	err := row.Scan(&rec.ID, &rec.TrackID, &rec.Classification, &rec.Confidence, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get track classification", err)
	}
	if t, err := parseTimeString(createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
