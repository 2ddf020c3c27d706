// Package preview 为暂存文件签发一次性本地预览地址。
package preview

import (
	"errors"
	"strings"
	"sync"

	"gridflow/internal/service"

	"github.com/google/uuid"
)

// PathPrefix 是预览地址的路由前缀。
const PathPrefix = "/previews/"

// ErrUnknownToken 表示预览地址不存在或已回收。
var ErrUnknownToken = errors.New("preview: unknown token")

// Registry 保存 token 到文件句柄的映射。
type Registry struct {
	mu      sync.RWMutex
	handles map[string]service.FileHandle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]service.FileHandle)}
}

// Create 登记句柄并返回预览地址。
func (r *Registry) Create(handle service.FileHandle) (string, error) {
	if handle == nil {
		return "", errors.New("preview: nil handle")
	}
	token := uuid.NewString()

	r.mu.Lock()
	r.handles[token] = handle
	r.mu.Unlock()
	return PathPrefix + token, nil
}

// Revoke 回收预览地址，重复回收无副作用。
func (r *Registry) Revoke(locator string) {
	token := strings.TrimPrefix(locator, PathPrefix)
	r.mu.Lock()
	delete(r.handles, token)
	r.mu.Unlock()
}

// Lookup 按 token 查找句柄。
func (r *Registry) Lookup(token string) (service.FileHandle, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrUnknownToken
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.handles[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	return handle, nil
}

// Len 返回仍然有效的预览数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
