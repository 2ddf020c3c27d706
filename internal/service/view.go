package service

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"gridflow/internal/repository"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageSize 是每页展示的记录数。
const PageSize = 5

// Category 是粗粒度的类型过滤条件，按 contentType 子串匹配。
type Category string

const (
	CategoryAll       Category = "all"
	CategoryDocuments Category = "documents"
	CategoryImages    Category = "images"
)

// ParseCategory 解析过滤类别，空串视为 all，docs 是 documents 的别名。
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return CategoryAll, nil
	case "documents", "docs":
		return CategoryDocuments, nil
	case "images":
		return CategoryImages, nil
	default:
		return "", fmt.Errorf("unknown filter category %q", raw)
	}
}

// Matches 判断 contentType 是否属于该类别。
func (c Category) Matches(contentType string) bool {
	switch c {
	case CategoryDocuments:
		return strings.Contains(contentType, "pdf")
	case CategoryImages:
		return strings.Contains(contentType, "image")
	default:
		return true
	}
}

// SortKey 选择排序方式。
type SortKey string

const (
	SortNewest SortKey = "newest"
	SortOldest SortKey = "oldest"
	SortSize   SortKey = "size"
	SortName   SortKey = "name"
)

// ParseSortKey 解析排序键，空串视为 newest。
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortSize, SortName:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", raw)
	}
}

// ViewState 是派生视图的输入，从不持久化。
type ViewState struct {
	Search   string   `json:"search"`
	Category Category `json:"filter"`
	Sort     SortKey  `json:"sort"`
	Page     int      `json:"page"`
}

// DefaultViewState 返回会话初始的视图状态。
func DefaultViewState() ViewState {
	return ViewState{Category: CategoryAll, Sort: SortNewest, Page: 1}
}

// View 是过滤、排序、分页后的结果。
type View struct {
	Items      []repository.FileRecord `json:"items"`
	Matched    int                     `json:"matched"`
	Page       int                     `json:"page"`
	TotalPages int                     `json:"total_pages"`
	PageSize   int                     `json:"page_size"`
}

// NewCollator 创建按语言区域比较文件名的排序器，无法识别的区域回退到英语。
// collate.Collator 不是并发安全的，每个会话持有自己的实例。
func NewCollator(locale string) *collate.Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return collate.New(tag)
}

// Compute 依次执行搜索、分类过滤、稳定排序与分页。
func Compute(records []repository.FileRecord, state ViewState, coll *collate.Collator) View {
	filtered := Filter(records, state.Search, state.Category)
	SortRecords(filtered, state.Sort, coll)
	window, page, totalPages := Paginate(filtered, state.Page)
	return View{
		Items:      window,
		Matched:    len(filtered),
		Page:       page,
		TotalPages: totalPages,
		PageSize:   PageSize,
	}
}

// Filter 返回同时满足搜索词与类别的记录，保持原有顺序。
func Filter(records []repository.FileRecord, query string, category Category) []repository.FileRecord {
	needle := strings.ToLower(query)
	out := make([]repository.FileRecord, 0, len(records))
	for _, rec := range records {
		if matchesQuery(rec, needle) && category.Matches(rec.ContentType) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesQuery(rec repository.FileRecord, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Metadata.DisplayName), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.ID), needle) {
		return true
	}
	for _, tag := range rec.Metadata.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// SortRecords 原地稳定排序；键相等时保持集合中的相对顺序。
func SortRecords(records []repository.FileRecord, key SortKey, coll *collate.Collator) {
	var compare func(a, b repository.FileRecord) int
	switch key {
	case SortOldest:
		compare = func(a, b repository.FileRecord) int { return a.UploadedAt.Compare(b.UploadedAt) }
	case SortSize:
		compare = func(a, b repository.FileRecord) int { return cmp.Compare(b.SizeBytes, a.SizeBytes) }
	case SortName:
		compare = func(a, b repository.FileRecord) int {
			if coll == nil {
				return strings.Compare(a.Metadata.DisplayName, b.Metadata.DisplayName)
			}
			return coll.CompareString(a.Metadata.DisplayName, b.Metadata.DisplayName)
		}
	case SortNewest:
		compare = func(a, b repository.FileRecord) int { return b.UploadedAt.Compare(a.UploadedAt) }
	default:
		return
	}
	slices.SortStableFunc(records, compare)
}

// Paginate 返回指定页的窗口以及收敛到 [1, totalPages] 的页码。
func Paginate(records []repository.FileRecord, page int) ([]repository.FileRecord, int, int) {
	totalPages := TotalPages(len(records))
	page = ClampPage(page, totalPages)

	start := (page - 1) * PageSize
	end := min(start+PageSize, len(records))
	if start >= end {
		return []repository.FileRecord{}, page, totalPages
	}
	return records[start:end], page, totalPages
}

// TotalPages 计算总页数，至少为 1。
func TotalPages(count int) int {
	pages := (count + PageSize - 1) / PageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage 把页码限制在 [1, totalPages]。
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
