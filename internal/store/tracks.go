package store

import (
	"context"
	"database/sql"
	"errors"

	"spindle/internal/corerr"
)

const trackColumns = `id, file_id, track_index, kind, codec, language, title, is_default, is_forced,
	channels, layout, width, height, frame_rate_avg, frame_rate_real,
	color_transfer, color_primaries, color_space, color_range, bit_rate, duration_seconds`

// ReplaceTracks atomically replaces all tracks of fileID with recs,
// matching the scan operation's "re-derive from a fresh probe" semantics.
func (s *Store) ReplaceTracks(ctx context.Context, fileID int64, recs []TrackRecord) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "begin replace tracks tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := retryOnBusy(ctx, func() error {
		_, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE file_id = ?`, fileID)
		return err
	}); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "clear tracks", err)
	}

	for _, rec := range recs {
		if err := retryOnBusy(ctx, func() error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tracks (
					file_id, track_index, kind, codec, language, title, is_default, is_forced,
					channels, layout, width, height, frame_rate_avg, frame_rate_real,
					color_transfer, color_primaries, color_space, color_range, bit_rate, duration_seconds
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fileID, rec.TrackIndex, string(rec.Kind), rec.Codec, rec.Language, rec.Title,
				boolToInt(rec.Default), boolToInt(rec.Forced),
				nullableInt(rec.Channels), nullableString(rec.Layout),
				nullableInt(rec.Width), nullableInt(rec.Height),
				nullableFloat64(rec.FrameRateAvg), nullableFloat64(rec.FrameRateReal),
				nullableString(rec.ColorTransfer), nullableString(rec.ColorPrimaries),
				nullableString(rec.ColorSpace), nullableString(rec.ColorRange),
				nullableInt64(rec.BitRate), nullableFloat64(rec.DurationSec),
			)
			return err
		}); err != nil {
			return corerr.New(corerr.StoreIntegrity, "store", "insert track", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "commit replace tracks", err)
	}
	return nil
}

// ListTracksByFile returns every track belonging to fileID, ordered by
// track_index.
func (s *Store) ListTracksByFile(ctx context.Context, fileID int64) ([]*TrackRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks WHERE file_id = ? ORDER BY track_index`, fileID)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "list tracks", err)
	}
	defer rows.Close()

	var out []*TrackRecord
	for rows.Next() {
		rec, err := scanTrack(rows)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "scan track row", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetTrackByFileAndIndex fetches one track by (file_id, track_index).
// Returns (nil, nil) when absent.
func (s *Store) GetTrackByFileAndIndex(ctx context.Context, fileID int64, trackIndex int) (*TrackRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks WHERE file_id = ? AND track_index = ?`, fileID, trackIndex)
	rec, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get track", err)
	}
	return rec, nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*TrackRecord, error) {
	var (
		id             int64
		fileID         int64
		trackIndex     int
		kind           string
		codec          string
		language       string
		title          string
		isDefault      int64
		isForced       int64
		channels       sql.NullInt64
		layout         sql.NullString
		width          sql.NullInt64
		height         sql.NullInt64
		frameRateAvg   sql.NullFloat64
		frameRateReal  sql.NullFloat64
		colorTransfer  sql.NullString
		colorPrimaries sql.NullString
		colorSpace     sql.NullString
		colorRange     sql.NullString
		bitRate        sql.NullInt64
		durationSec    sql.NullFloat64
	)

	if err := scanner.Scan(
		&id, &fileID, &trackIndex, &kind, &codec, &language, &title, &isDefault, &isForced,
		&channels, &layout, &width, &height, &frameRateAvg, &frameRateReal,
		&colorTransfer, &colorPrimaries, &colorSpace, &colorRange, &bitRate, &durationSec,
	); err != nil {
		return nil, err
	}

	rec := &TrackRecord{
		ID:             id,
		FileID:         fileID,
		TrackIndex:     trackIndex,
		Kind:           TrackKind(kind),
		Codec:          codec,
		Language:       language,
		Title:          title,
		Default:        intToBool(isDefault),
		Forced:         intToBool(isForced),
		Layout:         layout.String,
		ColorTransfer:  colorTransfer.String,
		ColorPrimaries: colorPrimaries.String,
		ColorSpace:     colorSpace.String,
		ColorRange:     colorRange.String,
	}
	if channels.Valid {
		v := int(channels.Int64)
		rec.Channels = &v
	}
	if width.Valid {
		v := int(width.Int64)
		rec.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		rec.Height = &v
	}
	if frameRateAvg.Valid {
		v := frameRateAvg.Float64
		rec.FrameRateAvg = &v
	}
	if frameRateReal.Valid {
		v := frameRateReal.Float64
		rec.FrameRateReal = &v
	}
	if bitRate.Valid {
		v := bitRate.Int64
		rec.BitRate = &v
	}
	if durationSec.Valid {
		v := durationSec.Float64
		rec.DurationSec = &v
	}
	return rec, nil
}
