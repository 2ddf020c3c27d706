package service

import (
	"net/url"
	"strings"

	"gridflow/internal/repository"
)

// DefaultShareBase 是记录未携带分享地址时使用的网关前缀。
const DefaultShareBase = "https://gridflow-gateway.pro/v1/share"

// ShareResolver 为记录推导可分享的地址，本身没有副作用。
type ShareResolver struct {
	base string
}

func NewShareResolver(base string) ShareResolver {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultShareBase
	}
	return ShareResolver{base: base}
}

// Resolve 优先返回记录自带的 ShareSource，否则由网关前缀与 ID 拼接。
func (r ShareResolver) Resolve(rec repository.FileRecord) string {
	if rec.ShareSource != "" {
		return rec.ShareSource
	}
	base := r.base
	if base == "" {
		base = DefaultShareBase
	}
	return base + "/" + url.PathEscape(rec.ID)
}

// DownloadSource 返回下载字节的来源地址。
func DownloadSource(rec repository.FileRecord) string {
	if rec.ShareSource != "" {
		return rec.ShareSource
	}
	return "/api/files/" + url.PathEscape(rec.StorageName)
}
