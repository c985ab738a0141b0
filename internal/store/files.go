package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spindle/internal/corerr"
)

const fileColumns = `id, path, size_bytes, modified_at, content_hash, container_format,
	scan_status, scan_error, scanned_at, scan_job_id, plugin_metadata, container_tags,
	created_at, updated_at`

// UpsertFile inserts a newly discovered file or updates an existing row
// matched by path, returning the persisted record.
func (s *Store) UpsertFile(ctx context.Context, rec *FileRecord) (*FileRecord, error) {
	if rec == nil {
		return nil, errors.New("file record is nil")
	}
	now := time.Now().UTC()

	pluginMeta, err := marshalJSON(rec.PluginMetadata)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "marshal plugin_metadata", err)
	}
	tags, err := marshalJSON(rec.ContainerTags)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "marshal container_tags", err)
	}

	existing, err := s.GetFileByPath(ctx, rec.Path)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		res, err := s.execWithRetry(ctx,
			`INSERT INTO files (
				path, size_bytes, modified_at, content_hash, container_format,
				scan_status, scan_error, scanned_at, scan_job_id, plugin_metadata, container_tags,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Path,
			rec.SizeBytes,
			rec.ModifiedAt.UTC().Format(time.RFC3339Nano),
			nullableString(rec.ContentHash),
			rec.ContainerFormat,
			string(rec.ScanStatus),
			nullableString(rec.ScanError),
			nullableTime(rec.ScannedAt),
			nullableString(rec.ScanJobID),
			pluginMeta,
			tags,
			now.Format(time.RFC3339Nano),
			now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "insert file", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "last insert id", err)
		}
		return s.GetFileByID(ctx, id)
	}

	rec.ID = existing.ID
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE files SET
			size_bytes = ?, modified_at = ?, content_hash = ?, container_format = ?,
			scan_status = ?, scan_error = ?, scanned_at = ?, scan_job_id = ?,
			plugin_metadata = ?, container_tags = ?, updated_at = ?
		 WHERE id = ?`,
		rec.SizeBytes,
		rec.ModifiedAt.UTC().Format(time.RFC3339Nano),
		nullableString(rec.ContentHash),
		rec.ContainerFormat,
		string(rec.ScanStatus),
		nullableString(rec.ScanError),
		nullableTime(rec.ScannedAt),
		nullableString(rec.ScanJobID),
		pluginMeta,
		tags,
		now.Format(time.RFC3339Nano),
		rec.ID,
	); err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "update file", err)
	}
	return s.GetFileByID(ctx, rec.ID)
}

// GetFileByID fetches a file record by its primary key. Returns (nil,
// nil) when no such row exists.
func (s *Store) GetFileByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get file by id", err)
	}
	return rec, nil
}

// GetFileByPath fetches a file record by its library path. Returns
// (nil, nil) when no such row exists.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get file by path", err)
	}
	return rec, nil
}

// ListFilesOptions filters and orders a file listing.
type ListFilesOptions struct {
	PathContains string
	ScanStatus   ScanStatus
	SortBy       string // one of the keys in sortableColumns; defaults to created_at
	Descending   bool
	Limit        int
	Offset       int
}

// ListFiles returns files matching opts, sorted by a whitelisted column.
func (s *Store) ListFiles(ctx context.Context, opts ListFilesOptions) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE 1 = 1`
	var args []any

	if opts.PathContains != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(opts.PathContains)+"%")
	}
	if opts.ScanStatus != "" {
		query += ` AND scan_status = ?`
		args = append(args, string(opts.ScanStatus))
	}

	column := resolveSortColumn(opts.SortBy)
	if column == "duration_seconds" {
		// files has no duration column of its own (nor does jobs, whose
		// listing falls back the same way), so fall back here.
		column = "created_at"
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", column, direction)

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "list files", err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "scan file row", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteFile removes a file record (and, via ON DELETE CASCADE, its
// tracks, operations, and cache rows).
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "delete file", err)
	}
	return nil
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id              int64
		path            string
		sizeBytes       int64
		modifiedAt      string
		contentHash     sql.NullString
		containerFormat string
		scanStatus      string
		scanError       sql.NullString
		scannedAt       sql.NullString
		scanJobID       sql.NullString
		pluginMeta      string
		tags            string
		createdAt       string
		updatedAt       string
	)

	if err := scanner.Scan(
		&id, &path, &sizeBytes, &modifiedAt, &contentHash, &containerFormat,
		&scanStatus, &scanError, &scannedAt, &scanJobID, &pluginMeta, &tags,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rec := &FileRecord{
		ID:              id,
		Path:            path,
		SizeBytes:       sizeBytes,
		ContentHash:     contentHash.String,
		ContainerFormat: containerFormat,
		ScanStatus:      ScanStatus(scanStatus),
		ScanError:       scanError.String,
		ScanJobID:       scanJobID.String,
	}
	if t, err := parseTimeString(modifiedAt); err == nil {
		rec.ModifiedAt = t
	}
	if t, err := parseTimeString(createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	rec.ScannedAt = nullTimePtr(scannedAt)

	_ = unmarshalJSON(pluginMeta, &rec.PluginMetadata)
	_ = unmarshalJSON(tags, &rec.ContainerTags)

	return rec, nil
}
