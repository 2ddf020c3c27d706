package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gridflow/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
)

// 面向用户的提示文案。
const (
	MsgUploaded         = "Pushed to cloud storage"
	MsgUploadFailed     = "Upload failed, file kept in staging"
	MsgDeleted          = "Purged resource node"
	MsgDeleteMissing    = "File no longer exists"
	MsgShareGenerated   = "All-device access link generated"
	MsgLinkCopied       = "Link copied"
	MsgIDCopied         = "Object ID copied"
	MsgCopyBlocked      = "Clipboard blocked the copy command"
	MsgDownloadPrepared = "Preparing download..."
	MsgDownloadFailed   = "Download unavailable"
)

// DefaultQuotaBytes 是统计面板使用的存储配额。
const DefaultQuotaBytes int64 = 50 * 1024 * 1024

const maxIDAttempts = 8

// Observer 接收会话事件，用于指标统计。
type Observer interface {
	Notified(n Notification)
	UploadFinished(err error)
	Copied(ok bool)
}

type nopObserver struct{}

func (nopObserver) Notified(Notification) {}
func (nopObserver) UploadFinished(error)  {}
func (nopObserver) Copied(bool)           {}

// Options 汇总会话依赖，零值字段使用默认实现。
type Options struct {
	Clock           Clock
	Transport       Transport
	Previewer       Previewer
	Clipboard       Clipboard
	Share           ShareResolver
	NotificationTTL time.Duration
	CopiedTTL       time.Duration
	QuotaBytes      int64
	Locale          string
	Observer        Observer
	NewID           func() string
	Logger          *zap.Logger
}

// Session 是单个浏览器会话持有的显式状态：记录集合、视图状态、暂存上传、
// 进行中的上传任务、状态提示与复制标记。所有操作串行执行。
type Session struct {
	id string

	mu        sync.Mutex
	store     *repository.Store
	view      ViewState
	coll      *collate.Collator
	pending   *PendingUpload
	task      *UploadTask
	closed    bool
	ctx       context.Context
	cancelCtx context.CancelFunc

	notifier   *Notifier
	indicators *Indicators

	clock     Clock
	transport Transport
	previewer Previewer
	clipboard Clipboard
	share     ShareResolver
	quota     int64
	newID     func() string
	observer  Observer
	logger    *zap.Logger
}

// NewSession 以初始记录创建会话。
func NewSession(id string, initial []repository.FileRecord, opts Options) (*Session, error) {
	store, err := repository.NewStore(initial)
	if err != nil {
		return nil, fmt.Errorf("seed session store: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	if opts.Share == (ShareResolver{}) {
		opts.Share = NewShareResolver(DefaultShareBase)
	}
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = DefaultQuotaBytes
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.NewID == nil {
		opts.NewID = NewObjectID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		store:      store,
		view:       DefaultViewState(),
		coll:       NewCollator(opts.Locale),
		ctx:        ctx,
		cancelCtx:  cancel,
		notifier:   NewNotifier(opts.Clock, opts.NotificationTTL),
		indicators: NewIndicators(opts.Clock, opts.CopiedTTL),
		clock:      opts.Clock,
		transport:  opts.Transport,
		previewer:  opts.Previewer,
		clipboard:  opts.Clipboard,
		share:      opts.Share,
		quota:      opts.QuotaBytes,
		newID:      opts.NewID,
		observer:   opts.Observer,
		logger:     opts.Logger.With(zap.String("session", id)),
	}
	s.notifier.OnShow(s.observer.Notified)
	return s, nil
}

// ID 返回会话标识。
func (s *Session) ID() string {
	return s.id
}

// State 是会话对外呈现的完整快照。
type State struct {
	ID           string         `json:"id"`
	View         View           `json:"view"`
	ViewState    ViewState      `json:"view_state"`
	Pending      *PendingUpload `json:"pending,omitempty"`
	Uploading    bool           `json:"uploading"`
	Notification Notification   `json:"notification"`
	Copied       []string       `json:"copied"`
	Stats        Stats          `json:"stats"`
}

// State 重新计算视图并返回快照。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.recomputeLocked()
	state := State{
		ID:           s.id,
		View:         view,
		ViewState:    s.view,
		Uploading:    s.task != nil,
		Notification: s.notifier.Current(),
		Copied:       s.indicators.Keys(),
		Stats:        s.statsLocked(),
	}
	if s.pending != nil {
		pending := *s.pending
		state.Pending = &pending
	}
	return state
}

// View 返回当前派生视图。
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked()
}

// ViewUpdate 描述对视图状态的部分修改，nil 字段保持不变。
type ViewUpdate struct {
	Search   *string
	Category *Category
	Sort     *SortKey
	Page     *int
}

// UpdateView 应用视图修改后重新收敛页码。
func (s *Session) UpdateView(update ViewUpdate) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Search != nil {
		s.view.Search = *update.Search
	}
	if update.Category != nil {
		s.view.Category = *update.Category
	}
	if update.Sort != nil {
		s.view.Sort = *update.Sort
	}
	if update.Page != nil {
		s.view.Page = *update.Page
	}
	return s.recomputeLocked()
}

// SetSearch 修改搜索词。
func (s *Session) SetSearch(query string) View {
	return s.UpdateView(ViewUpdate{Search: &query})
}

// SetCategory 修改类型过滤。
func (s *Session) SetCategory(c Category) View {
	return s.UpdateView(ViewUpdate{Category: &c})
}

// SetSort 修改排序方式。
func (s *Session) SetSort(key SortKey) View {
	return s.UpdateView(ViewUpdate{Sort: &key})
}

// SetPage 跳转到指定页，越界时收敛。
func (s *Session) SetPage(page int) View {
	return s.UpdateView(ViewUpdate{Page: &page})
}

// NextPage 翻到下一页，最后一页时不变。
func (s *Session) NextPage() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Page++
	return s.recomputeLocked()
}

// PrevPage 翻到上一页，第一页时不变。
func (s *Session) PrevPage() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Page--
	return s.recomputeLocked()
}

// Stage 暂存用户选择的文件，替换已有的暂存项。
func (s *Session) Stage(handle FileHandle) (PendingUpload, error) {
	if handle == nil {
		return PendingUpload{}, errors.New("file handle is nil")
	}
	if handle.Size() < 0 {
		return PendingUpload{}, fmt.Errorf("%w: size must not be negative", repository.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return PendingUpload{}, ErrSessionClosed
	}
	if s.task != nil {
		return PendingUpload{}, ErrUploadInProgress
	}

	pending := PendingUpload{
		Handle:      handle,
		Name:        handle.Name(),
		SizeBytes:   handle.Size(),
		ContentType: handle.ContentType(),
	}
	if s.previewer != nil && Previewable(pending.ContentType) {
		locator, err := s.previewer.Create(handle)
		if err != nil {
			s.logger.Warn("创建预览失败", zap.String("name", pending.Name), zap.Error(err))
		} else {
			pending.PreviewLocator = locator
		}
	}

	s.releasePendingLocked()
	s.pending = &pending
	return pending, nil
}

// Pending 返回当前暂存项。
func (s *Session) Pending() (PendingUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingUpload{}, false
	}
	return *s.pending, true
}

// Uploading 判断是否有上传在进行。
func (s *Session) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil
}

// Discard 丢弃暂存项，取消进行中的上传并回收预览地址。
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
	s.releasePendingLocked()
}

// ConfirmUpload 启动异步提交。没有暂存项时返回 ErrNoPendingUpload 且不改变任何状态。
func (s *Session) ConfirmUpload() (*UploadTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.pending == nil {
		return nil, ErrNoPendingUpload
	}
	if s.task != nil {
		return nil, ErrUploadInProgress
	}

	pending := *s.pending
	draft := repository.FileRecord{
		ID:          s.freshIDLocked(),
		StorageName: StorageName(pending.Name),
		ContentType: pending.ContentType,
		SizeBytes:   pending.SizeBytes,
		UploadedAt:  s.clock.Now(),
		Metadata: repository.Metadata{
			DisplayName: pending.Name,
			Tags:        []string{DefaultUploadTag},
		},
	}

	ctx, cancel := context.WithCancel(s.ctx)
	task := newUploadTask(cancel)
	s.task = task

	go s.runUpload(ctx, task, pending, draft)
	return task, nil
}

func (s *Session) runUpload(ctx context.Context, task *UploadTask, pending PendingUpload, draft repository.FileRecord) {
	rec, submitErr := s.submit(ctx, pending, draft)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != task {
		// 已被丢弃或会话已关闭
		task.finish(repository.FileRecord{}, context.Canceled)
		return
	}
	s.task = nil

	if submitErr != nil {
		err := fmt.Errorf("%w: %v", ErrTransport, submitErr)
		s.logger.Warn("上传失败", zap.String("name", pending.Name), zap.Error(submitErr))
		s.notifier.Error(MsgUploadFailed)
		s.observer.UploadFinished(err)
		task.finish(repository.FileRecord{}, err)
		return
	}

	committed, err := s.commitLocked(rec)
	if err != nil {
		s.logger.Error("提交记录失败", zap.String("id", rec.ID), zap.Error(err))
		s.notifier.Error(MsgUploadFailed)
		s.observer.UploadFinished(err)
		task.finish(repository.FileRecord{}, err)
		return
	}

	s.releasePendingLocked()
	s.recomputeLocked()
	s.notifier.Success(MsgUploaded)
	s.observer.UploadFinished(nil)
	s.logger.Info("上传完成", zap.String("id", committed.ID), zap.String("storage_name", committed.StorageName))
	task.finish(committed, nil)
}

func (s *Session) submit(ctx context.Context, pending PendingUpload, draft repository.FileRecord) (repository.FileRecord, error) {
	if s.transport == nil {
		return draft, nil
	}

	var body io.Reader = strings.NewReader("")
	if pending.Handle != nil {
		rc, err := pending.Handle.Open()
		if err != nil {
			return repository.FileRecord{}, fmt.Errorf("open staged file: %w", err)
		}
		defer rc.Close()
		body = rc
	}

	rec, err := s.transport.Submit(ctx, draft, body)
	if err != nil {
		return repository.FileRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return repository.FileRecord{}, err
	}
	return rec, nil
}

// commitLocked 插入记录，ID 冲突时重新生成，不覆盖已有记录。
func (s *Session) commitLocked(rec repository.FileRecord) (repository.FileRecord, error) {
	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		err = s.store.Insert(rec)
		if !errors.Is(err, repository.ErrDuplicateID) {
			return rec, err
		}
		s.logger.Warn("记录 ID 冲突，重新生成", zap.String("id", rec.ID))
		rec.ID = s.newID()
	}
	return repository.FileRecord{}, err
}

func (s *Session) freshIDLocked() string {
	id := s.newID()
	for attempt := 1; attempt < maxIDAttempts && s.store.Has(id); attempt++ {
		id = s.newID()
	}
	return id
}

// Delete 立即删除记录。
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.RemoveByID(id); err != nil {
		s.notifier.Error(MsgDeleteMissing)
		return err
	}
	s.indicators.Clear(ShareIndicator(id))
	s.indicators.Clear(IDIndicator(id))
	s.recomputeLocked()
	s.notifier.Success(MsgDeleted)
	return nil
}

// Get 返回记录副本。
func (s *Session) Get(id string) (repository.FileRecord, error) {
	return s.store.Get(id)
}

// Records 返回集合中的全部记录。
func (s *Session) Records() []repository.FileRecord {
	return s.store.All()
}

// Share 生成分享地址并提示。
func (s *Session) Share(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Get(id)
	if err != nil {
		s.notifier.Error(MsgDeleteMissing)
		return "", err
	}
	link := s.share.Resolve(rec)
	s.indicators.Clear(ShareIndicator(id))
	s.notifier.Success(MsgShareGenerated)
	return link, nil
}

// CopyShareLink 把分享地址写入剪贴板。返回的 bool 表示是否成功，失败不视为错误。
func (s *Session) CopyShareLink(id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Get(id)
	if err != nil {
		s.notifier.Error(MsgDeleteMissing)
		return "", false, err
	}
	link := s.share.Resolve(rec)
	ok := s.copyLocked(link, ShareIndicator(id), MsgLinkCopied)
	return link, ok, nil
}

// CopyID 把记录 ID 写入剪贴板。
func (s *Session) CopyID(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Has(id) {
		s.notifier.Error(MsgDeleteMissing)
		return false, repository.ErrNotFound
	}
	return s.copyLocked(id, IDIndicator(id), MsgIDCopied), nil
}

func (s *Session) copyLocked(text, indicatorKey, successMsg string) bool {
	ok := s.clipboard.Copy(text)
	s.observer.Copied(ok)
	if !ok {
		s.notifier.Error(MsgCopyBlocked)
		return false
	}
	s.notifier.Success(successMsg)
	s.indicators.Mark(indicatorKey)
	return true
}

// Copied 判断指定动作的“已复制”标记是否点亮。
func (s *Session) Copied(key string) bool {
	return s.indicators.Active(key)
}

// Download 打开记录的字节流。失败时提示错误，会话状态不变。
func (s *Session) Download(ctx context.Context, id string) (repository.FileRecord, io.ReadCloser, error) {
	s.mu.Lock()
	rec, err := s.store.Get(id)
	if err != nil {
		s.notifier.Error(MsgDeleteMissing)
		s.mu.Unlock()
		return repository.FileRecord{}, nil, err
	}
	s.notifier.Success(MsgDownloadPrepared)
	s.mu.Unlock()

	if s.transport == nil {
		s.notifier.Error(MsgDownloadFailed)
		return rec, nil, fmt.Errorf("%w: no transport configured", ErrTransport)
	}
	body, err := s.transport.Fetch(ctx, rec)
	if err != nil {
		s.logger.Warn("下载失败", zap.String("id", id), zap.String("source", DownloadSource(rec)), zap.Error(err))
		s.notifier.Error(MsgDownloadFailed)
		return rec, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return rec, body, nil
}

// Notification 返回当前状态提示。
func (s *Session) Notification() Notification {
	return s.notifier.Current()
}

// Dismiss 关闭状态提示。
func (s *Session) Dismiss() {
	s.notifier.Dismiss()
}

// Close 取消全部计时器与上传任务并回收预览地址，可重复调用。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
	s.releasePendingLocked()
	s.cancelCtx()
	s.mu.Unlock()

	s.notifier.Close()
	s.indicators.Close()
}

func (s *Session) releasePendingLocked() {
	if s.pending == nil {
		return
	}
	if s.previewer != nil && s.pending.PreviewLocator != "" {
		s.previewer.Revoke(s.pending.PreviewLocator)
	}
	s.pending = nil
}

func (s *Session) recomputeLocked() View {
	records, _ := s.store.Snapshot()
	view := Compute(records, s.view, s.coll)
	s.view.Page = view.Page
	return view
}

// ShareIndicator 返回分享地址复制标记的键。
func ShareIndicator(id string) string {
	return "share:" + id
}

// IDIndicator 返回 ID 复制标记的键。
func IDIndicator(id string) string {
	return "id:" + id
}
