package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"gridflow/internal/repository"
)

// DefaultUploadTag 是新上传记录的默认标签。
const DefaultUploadTag = "HANDHELD-SYNC"

// FileHandle 是文件选择方提供的原始字节句柄，目录引擎只读取名称、大小与类型。
type FileHandle interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// Previewer 为可预览的暂存文件签发本地预览地址，并负责回收。
type Previewer interface {
	Create(handle FileHandle) (string, error)
	Revoke(locator string)
}

// Transport 是上传与下载的外部协作方。
type Transport interface {
	// Submit 持久化草稿记录对应的字节，可补充 ShareSource 等字段后返回最终记录。
	Submit(ctx context.Context, draft repository.FileRecord, body io.Reader) (repository.FileRecord, error)
	// Fetch 打开记录对应的字节流。
	Fetch(ctx context.Context, rec repository.FileRecord) (io.ReadCloser, error)
}

// PendingUpload 是尚未提交的暂存文件，每个会话至多一个。
type PendingUpload struct {
	Handle         FileHandle `json:"-"`
	Name           string     `json:"name"`
	SizeBytes      int64      `json:"size_bytes"`
	ContentType    string     `json:"content_type"`
	PreviewLocator string     `json:"preview,omitempty"`
}

// Previewable 判断内容类型是否生成本地预览。
func Previewable(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// UploadTask 是一次异步提交，可取消。
type UploadTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	err    error
	record repository.FileRecord
}

func newUploadTask(cancel context.CancelFunc) *UploadTask {
	return &UploadTask{cancel: cancel, done: make(chan struct{})}
}

// Done 在任务结束（提交、失败或取消）后关闭。
func (t *UploadTask) Done() <-chan struct{} {
	return t.done
}

// Err 返回任务结果，Done 关闭前为 nil。
func (t *UploadTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Record 返回已提交的记录。
func (t *UploadTask) Record() repository.FileRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}

// Cancel 取消任务；已提交的结果不受影响。
func (t *UploadTask) Cancel() {
	t.cancel()
}

func (t *UploadTask) finish(rec repository.FileRecord, err error) {
	t.mu.Lock()
	t.record = rec
	t.err = err
	t.mu.Unlock()
	t.cancel()
	close(t.done)
}

// BytesHandle 是内存中的文件句柄，适用于已经读入的表单上传。
type BytesHandle struct {
	name        string
	contentType string
	data        []byte
}

func NewBytesHandle(name, contentType string, data []byte) *BytesHandle {
	return &BytesHandle{name: name, contentType: contentType, data: data}
}

func (h *BytesHandle) Name() string        { return h.name }
func (h *BytesHandle) Size() int64         { return int64(len(h.data)) }
func (h *BytesHandle) ContentType() string { return h.contentType }

func (h *BytesHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.data)), nil
}
