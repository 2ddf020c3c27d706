package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gridflow/internal/storage"
)

// Store 将对象写入本地目录，key 即存储名。
type Store struct {
	BaseDir string
	BaseURL string
}

func New(baseDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage dir: %w", err)
	}
	return &Store{BaseDir: baseDir, BaseURL: baseURL}, nil
}

// Write 先写临时文件再重命名，读者不会看到写了一半的对象。
func (s *Store) Write(ctx context.Context, key string, r io.Reader, _ string) (storage.Location, error) {
	if s == nil {
		return storage.Location{}, fmt.Errorf("local storage uninitialized")
	}
	if err := ctx.Err(); err != nil {
		return storage.Location{}, err
	}

	targetPath, err := s.resolve(key)
	if err != nil {
		return storage.Location{}, err
	}

	file, err := os.CreateTemp(s.BaseDir, ".upload-*")
	if err != nil {
		return storage.Location{}, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := file.Name()

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		os.Remove(tempPath)
		return storage.Location{}, fmt.Errorf("write file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return storage.Location{}, fmt.Errorf("sync file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return storage.Location{}, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)
		return storage.Location{}, fmt.Errorf("rename temp file: %w", err)
	}

	loc := storage.Location{Path: targetPath}
	if s.BaseURL != "" {
		if u, err := url.JoinPath(s.BaseURL, url.PathEscape(key)); err == nil {
			loc.URL = u
		}
	}
	return loc, nil
}

// Read 打开 key 对应的文件。
func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("local storage uninitialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	targetPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// resolve 拒绝包含路径分隔符的 key，避免写出 BaseDir。
func (s *Store) resolve(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.BaseDir, key), nil
}
