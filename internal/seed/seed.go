// Package seed 提供新会话的初始记录来源。来源都是只读的，会话从不写回。
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gridflow/internal/repository"
)

// Source 返回新会话的初始记录，每次调用都返回独立副本。
type Source interface {
	Load(ctx context.Context) ([]repository.FileRecord, error)
}

// Builtin 是内置的示例数据，上传时间相对当前时间计算。
type Builtin struct {
	Now func() time.Time
}

func (b Builtin) Load(ctx context.Context) ([]repository.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if b.Now != nil {
		now = b.Now()
	}
	return []repository.FileRecord{
		{
			ID:          "65c3d4e5f6a7b8c901234567",
			StorageName: "api_documentation.pdf",
			ContentType: "application/pdf",
			SizeBytes:   450 * 1024,
			UploadedAt:  now.Add(-10 * time.Minute),
			Metadata: repository.Metadata{
				DisplayName: "api_documentation.pdf",
				Tags:        []string{"API", "INTERNAL"},
			},
			ShareSource: "https://www.africau.edu/images/default/sample.pdf",
		},
		{
			ID:          "65b2c3d4e5f6a7b8c9012345",
			StorageName: "hero_background.png",
			ContentType: "image/png",
			SizeBytes:   2048 * 1024,
			UploadedAt:  now.Add(-5 * time.Hour),
			Metadata: repository.Metadata{
				DisplayName: "hero_background.png",
				Tags:        []string{"ASSET", "DESIGN"},
				Extra:       map[string]any{"project": "Website Redesign"},
			},
			ShareSource: "https://images.unsplash.com/photo-1618005182384-a83a8bd57fbe?auto=format&fit=crop&q=80&w=800&h=600",
		},
		{
			ID:          "65a1b2c3d4e5f6a7b8c90123",
			StorageName: "technical_specification_v2.pdf",
			ContentType: "application/pdf",
			SizeBytes:   1250 * 1024,
			UploadedAt:  time.Date(2025, 12, 22, 12, 0, 0, 0, time.UTC),
			Metadata: repository.Metadata{
				DisplayName: "technical_specification_v2.pdf",
				Tags:        []string{"INTERNAL", "SPEC", "DESIGN"},
				Extra:       map[string]any{"version": "2.0"},
			},
			ShareSource: "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf",
		},
	}, nil
}

// Decode 解析 JSON 数组形式的记录，校验每条记录并拒绝重复 ID。
func Decode(r io.Reader) ([]repository.FileRecord, error) {
	var records []repository.FileRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode seed records: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, &repository.DuplicateIDError{ID: rec.ID}
		}
		seen[rec.ID] = struct{}{}
		records[i].UploadedAt = rec.UploadedAt.UTC()
	}
	return records, nil
}

func cloneAll(records []repository.FileRecord) []repository.FileRecord {
	out := make([]repository.FileRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
