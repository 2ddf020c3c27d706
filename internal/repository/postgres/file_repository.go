package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"gridflow/internal/repository"
)

// NewSeedRepository 返回基于 *sql.DB 的只读种子数据实现。
func NewSeedRepository(db *sql.DB) *SeedRepository {
	return &SeedRepository{db: db}
}

// SeedRepository 从 seed_files 表读取会话的初始记录，从不写回。
type SeedRepository struct {
	db *sql.DB
}

var seedSelectColumns = []string{
	"id",
	"storage_name",
	"content_type",
	"size_bytes",
	"uploaded_at",
	"metadata",
	"share_source",
}

// List 按上传时间倒序返回全部种子记录，limit <= 0 表示不限制。
func (r *SeedRepository) List(ctx context.Context, limit int) ([]repository.FileRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("seed repository uninitialized")
	}

	query := fmt.Sprintf(`SELECT %s FROM seed_files ORDER BY uploaded_at DESC, id`, strings.Join(seedSelectColumns, ","))
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seed_files: %w", err)
	}
	defer rows.Close()

	var result []repository.FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(rs rowScanner) (repository.FileRecord, error) {
	var (
		rec         repository.FileRecord
		metadata    []byte
		shareSource sql.NullString
	)

	if err := rs.Scan(
		&rec.ID,
		&rec.StorageName,
		&rec.ContentType,
		&rec.SizeBytes,
		&rec.UploadedAt,
		&metadata,
		&shareSource,
	); err != nil {
		return repository.FileRecord{}, fmt.Errorf("scan seed row: %w", err)
	}

	rec.ID = strings.TrimSpace(rec.ID)
	rec.UploadedAt = rec.UploadedAt.UTC()
	if shareSource.Valid {
		rec.ShareSource = shareSource.String
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return repository.FileRecord{}, fmt.Errorf("decode metadata of %s: %w", rec.ID, err)
		}
	}
	if err := rec.Validate(); err != nil {
		return repository.FileRecord{}, err
	}
	return rec, nil
}
