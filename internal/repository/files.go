package repository

import (
	"encoding/json"
	"fmt"
	"time"
)

// 元数据中由目录引擎识别的保留键。
const (
	MetaDisplayName = "displayName"
	MetaTags        = "tags"
)

// FileRecord 代表会话目录中的一条文件记录，插入后不可修改。
type FileRecord struct {
	ID          string    `json:"id"`
	StorageName string    `json:"storage_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Metadata    Metadata  `json:"metadata"`
	ShareSource string    `json:"share_source,omitempty"`
}

// DisplayName 返回面向用户的文件名，缺失时回退到存储名。
func (r FileRecord) DisplayName() string {
	if r.Metadata.DisplayName != "" {
		return r.Metadata.DisplayName
	}
	return r.StorageName
}

// Clone 返回不与原记录共享任何可变状态的副本。
func (r FileRecord) Clone() FileRecord {
	out := r
	out.Metadata = r.Metadata.Clone()
	return out
}

// Validate 检查记录的基本约束。
func (r FileRecord) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case r.SizeBytes < 0:
		return fmt.Errorf("%w: size_bytes must not be negative", ErrInvalidRecord)
	default:
		return nil
	}
}

// Metadata 是开放的键值集合；displayName 与 tags 之外的键原样保留在 Extra 中。
type Metadata struct {
	DisplayName string
	Tags        []string
	Extra       map[string]any
}

// Clone 深拷贝元数据。
func (m Metadata) Clone() Metadata {
	out := Metadata{DisplayName: m.DisplayName}
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = cloneValue(v)
		}
	}
	return out
}

// MarshalJSON 将元数据编码为单个扁平对象。
func (m Metadata) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		flat[k] = v
	}
	if m.DisplayName != "" {
		flat[MetaDisplayName] = m.DisplayName
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	flat[MetaTags] = tags
	return json.Marshal(flat)
}

// UnmarshalJSON 解析扁平对象，未识别的键保存到 Extra。
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*m = Metadata{}
	for key, raw := range flat {
		switch key {
		case MetaDisplayName:
			if err := json.Unmarshal(raw, &m.DisplayName); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case MetaTags:
			if err := json.Unmarshal(raw, &m.Tags); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		default:
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[key] = value
		}
	}
	return nil
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}
