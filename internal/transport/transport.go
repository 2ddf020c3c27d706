// Package transport 提供上传与下载的外部协作方实现。
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gridflow/internal/repository"
	"gridflow/internal/service"
	"gridflow/internal/storage"
)

// DefaultUploadDelay 是模拟上传的固定耗时。
const DefaultUploadDelay = 1500 * time.Millisecond

// ErrNoSource 表示记录没有可读取的字节来源。
var ErrNoSource = errors.New("transport: no byte source for record")

// Simulated 只等待固定延迟，不保存字节；下载时尝试拉取记录自带的远程地址。
type Simulated struct {
	Clock  service.Clock
	Delay  time.Duration
	Client *http.Client
}

func NewSimulated(clock service.Clock, delay time.Duration, client *http.Client) *Simulated {
	if clock == nil {
		clock = service.SystemClock{}
	}
	if delay < 0 {
		delay = DefaultUploadDelay
	}
	return &Simulated{Clock: clock, Delay: delay, Client: client}
}

func (t *Simulated) Submit(ctx context.Context, draft repository.FileRecord, body io.Reader) (repository.FileRecord, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return repository.FileRecord{}, fmt.Errorf("drain upload body: %w", err)
	}
	if err := wait(ctx, t.Clock, t.Delay); err != nil {
		return repository.FileRecord{}, err
	}
	return draft, nil
}

func (t *Simulated) Fetch(ctx context.Context, rec repository.FileRecord) (io.ReadCloser, error) {
	return fetchRemote(ctx, t.Client, rec.ShareSource)
}

// Stored 把字节写入对象存储，存储给出的 http(s) 地址作为记录的 ShareSource。
type Stored struct {
	Storage storage.Storage
	Client  *http.Client
}

func NewStored(store storage.Storage, client *http.Client) *Stored {
	return &Stored{Storage: store, Client: client}
}

func (t *Stored) Submit(ctx context.Context, draft repository.FileRecord, body io.Reader) (repository.FileRecord, error) {
	loc, err := t.Storage.Write(ctx, draft.StorageName, body, draft.ContentType)
	if err != nil {
		return repository.FileRecord{}, fmt.Errorf("write object: %w", err)
	}
	if isRemote(loc.URL) {
		draft.ShareSource = loc.URL
	}
	return draft, nil
}

func (t *Stored) Fetch(ctx context.Context, rec repository.FileRecord) (io.ReadCloser, error) {
	rc, err := t.Storage.Read(ctx, rec.StorageName)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) || !isRemote(rec.ShareSource) {
		return nil, err
	}
	return fetchRemote(ctx, t.Client, rec.ShareSource)
}

func wait(ctx context.Context, clock service.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	timer := clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

func fetchRemote(ctx context.Context, client *http.Client, source string) (io.ReadCloser, error) {
	if !isRemote(source) {
		return nil, ErrNoSource
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", source, resp.StatusCode)
	}
	return resp.Body, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
