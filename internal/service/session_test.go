package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"gridflow/internal/repository"
	"gridflow/internal/testclock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingTransport 在测试释放前阻塞 Submit。
type blockingTransport struct {
	mu        sync.Mutex
	submitted chan repository.FileRecord
	release   chan error
	bodies    []string
	fetchErr  error
	fetchBody string
	fetched   []string
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		submitted: make(chan repository.FileRecord, 4),
		release:   make(chan error, 4),
	}
}

func (b *blockingTransport) Submit(ctx context.Context, draft repository.FileRecord, body io.Reader) (repository.FileRecord, error) {
	data, _ := io.ReadAll(body)
	b.mu.Lock()
	b.bodies = append(b.bodies, string(data))
	b.mu.Unlock()

	b.submitted <- draft
	select {
	case err := <-b.release:
		if err != nil {
			return repository.FileRecord{}, err
		}
		return draft, nil
	case <-ctx.Done():
		return repository.FileRecord{}, ctx.Err()
	}
}

func (b *blockingTransport) Fetch(ctx context.Context, rec repository.FileRecord) (io.ReadCloser, error) {
	b.mu.Lock()
	b.fetched = append(b.fetched, rec.ID)
	b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return io.NopCloser(strings.NewReader(b.fetchBody)), nil
}

// clashingTransport 总是返回固定 ID，模拟服务端分配冲突。
type clashingTransport struct {
	id string
}

func (c clashingTransport) Submit(_ context.Context, draft repository.FileRecord, _ io.Reader) (repository.FileRecord, error) {
	draft.ID = c.id
	return draft, nil
}

func (c clashingTransport) Fetch(context.Context, repository.FileRecord) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type fakePreviewer struct {
	mu      sync.Mutex
	seq     int
	live    map[string]bool
	revoked []string
}

func newFakePreviewer() *fakePreviewer {
	return &fakePreviewer{live: map[string]bool{}}
}

func (p *fakePreviewer) Create(handle FileHandle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	loc := fmt.Sprintf("/previews/%d", p.seq)
	p.live[loc] = true
	return loc, nil
}

func (p *fakePreviewer) Revoke(locator string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, locator)
	p.revoked = append(p.revoked, locator)
}

func (p *fakePreviewer) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type sessionFixture struct {
	session   *Session
	clock     *testclock.Clock
	transport *blockingTransport
	previewer *fakePreviewer
	copied    []string
	copyOK    bool
}

func newFixture(t *testing.T, initial []repository.FileRecord) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		clock:     testclock.New(baseTime),
		transport: newBlockingTransport(),
		previewer: newFakePreviewer(),
		copyOK:    true,
	}
	s, err := NewSession("sess-1", initial, Options{
		Clock:     fx.clock,
		Transport: fx.transport,
		Previewer: fx.previewer,
		Clipboard: ClipboardFunc(func(text string) bool {
			fx.copied = append(fx.copied, text)
			return fx.copyOK
		}),
		Share: NewShareResolver("https://share.example/v1/share"),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	fx.session = s
	return fx
}

func waitTask(t *testing.T, task *UploadTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("upload task did not finish")
	}
}

func manyRecords(n int) []repository.FileRecord {
	out := make([]repository.FileRecord, n)
	for i := range out {
		out[i] = rec(fmt.Sprintf("%024x", i+1), fmt.Sprintf("file-%02d.pdf", i), "application/pdf", int64(i), time.Duration(i)*time.Minute)
	}
	return out
}

func TestSession_DeleteReclampsPage(t *testing.T) {
	fx := newFixture(t, manyRecords(6))
	s := fx.session

	view := s.SetPage(2)
	require.Equal(t, 2, view.Page)
	require.Equal(t, 2, view.TotalPages)
	require.Len(t, view.Items, 1)
	last := view.Items[0].ID

	require.NoError(t, s.Delete(last))

	state := s.State()
	assert.Equal(t, 1, state.ViewState.Page)
	assert.Equal(t, 1, state.View.Page)
	assert.Equal(t, 1, state.View.TotalPages)
	assert.Len(t, state.View.Items, 5)
	assert.Equal(t, Notification{Kind: KindSuccess, Message: MsgDeleted, ExpiresAt: baseTime.Add(DefaultNotificationTTL)}, state.Notification)
}

func TestSession_FilterChangeReclampsPage(t *testing.T) {
	fx := newFixture(t, manyRecords(12))
	s := fx.session

	s.SetPage(3)
	view := s.SetSearch("file-01")
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 1, view.TotalPages)

	view = s.SetSearch("")
	assert.Equal(t, 1, view.Page)
}

func TestSession_NextPrevStayInRange(t *testing.T) {
	fx := newFixture(t, manyRecords(7))
	s := fx.session

	assert.Equal(t, 1, s.PrevPage().Page)
	assert.Equal(t, 2, s.NextPage().Page)
	assert.Equal(t, 2, s.NextPage().Page)
	assert.Equal(t, 1, s.PrevPage().Page)
}

func TestSession_DeleteUnknownShowsError(t *testing.T) {
	fx := newFixture(t, manyRecords(2))

	err := fx.session.Delete("ffffffffffffffffffffffff")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, KindError, fx.session.Notification().Kind)
	assert.Len(t, fx.session.Records(), 2)
}

func TestSession_ConfirmWithoutPendingIsNoop(t *testing.T) {
	fx := newFixture(t, manyRecords(1))

	task, err := fx.session.ConfirmUpload()
	assert.Nil(t, task)
	assert.ErrorIs(t, err, ErrNoPendingUpload)
	assert.False(t, fx.session.Uploading())
	assert.False(t, fx.session.Notification().Visible())
	assert.Len(t, fx.session.Records(), 1)
}

func TestSession_UploadLifecycle(t *testing.T) {
	fx := newFixture(t, manyRecords(1))
	s := fx.session

	pending, err := s.Stage(NewBytesHandle("photo.png", "image/png", []byte("pngdata")))
	require.NoError(t, err)
	assert.Equal(t, "/previews/1", pending.PreviewLocator)
	assert.Equal(t, int64(7), pending.SizeBytes)

	task, err := s.ConfirmUpload()
	require.NoError(t, err)
	draft := <-fx.transport.submitted

	assert.True(t, s.Uploading())
	_, err = s.ConfirmUpload()
	assert.ErrorIs(t, err, ErrUploadInProgress)
	_, err = s.Stage(NewBytesHandle("other.pdf", "application/pdf", nil))
	assert.ErrorIs(t, err, ErrUploadInProgress)

	// 提交完成前记录不可见，暂存项仍在
	assert.Len(t, s.Records(), 1)
	_, ok := s.Pending()
	assert.True(t, ok)

	fx.transport.release <- nil
	waitTask(t, task)
	require.NoError(t, task.Err())

	committed := task.Record()
	assert.Equal(t, draft.ID, committed.ID)
	assert.Regexp(t, `^[0-9a-f]{24}$`, committed.ID)
	assert.Regexp(t, `^[0-9a-f]{8}_photo\.png$`, committed.StorageName)
	assert.Equal(t, []string{DefaultUploadTag}, committed.Metadata.Tags)
	assert.Equal(t, "photo.png", committed.Metadata.DisplayName)
	assert.Equal(t, baseTime, committed.UploadedAt)

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, committed.ID, records[0].ID)

	_, ok = s.Pending()
	assert.False(t, ok)
	assert.False(t, s.Uploading())
	assert.Equal(t, 0, fx.previewer.liveCount())
	assert.Equal(t, MsgUploaded, s.Notification().Message)
	assert.Equal(t, []string{"pngdata"}, fx.transport.bodies)
}

func TestSession_UploadFailureKeepsState(t *testing.T) {
	fx := newFixture(t, manyRecords(1))
	s := fx.session

	_, err := s.Stage(NewBytesHandle("doc.pdf", "application/pdf", []byte("%PDF")))
	require.NoError(t, err)

	task, err := s.ConfirmUpload()
	require.NoError(t, err)
	<-fx.transport.submitted
	fx.transport.release <- errors.New("connection reset")
	waitTask(t, task)

	assert.ErrorIs(t, task.Err(), ErrTransport)
	assert.Len(t, s.Records(), 1)
	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, "doc.pdf", pending.Name)
	assert.Equal(t, 1, fx.previewer.liveCount())
	assert.False(t, s.Uploading())
	assert.Equal(t, KindError, s.Notification().Kind)

	// 失败后可以重试
	task, err = s.ConfirmUpload()
	require.NoError(t, err)
	<-fx.transport.submitted
	fx.transport.release <- nil
	waitTask(t, task)
	assert.NoError(t, task.Err())
	assert.Len(t, s.Records(), 2)
}

func TestSession_DiscardCancelsUpload(t *testing.T) {
	fx := newFixture(t, nil)
	s := fx.session

	_, err := s.Stage(NewBytesHandle("photo.jpg", "image/jpeg", []byte("jpg")))
	require.NoError(t, err)
	task, err := s.ConfirmUpload()
	require.NoError(t, err)
	<-fx.transport.submitted

	s.Discard()
	waitTask(t, task)

	assert.ErrorIs(t, task.Err(), context.Canceled)
	assert.Empty(t, s.Records())
	_, ok := s.Pending()
	assert.False(t, ok)
	assert.False(t, s.Uploading())
	assert.Equal(t, 0, fx.previewer.liveCount())
}

func TestSession_StageReplacesAndRevokesPreview(t *testing.T) {
	fx := newFixture(t, nil)
	s := fx.session

	_, err := s.Stage(NewBytesHandle("a.png", "image/png", []byte("a")))
	require.NoError(t, err)
	pending, err := s.Stage(NewBytesHandle("notes.txt", "text/plain", []byte("b")))
	require.NoError(t, err)

	assert.Empty(t, pending.PreviewLocator)
	assert.Equal(t, []string{"/previews/1"}, fx.previewer.revoked)
	assert.Equal(t, 0, fx.previewer.liveCount())
}

func TestSession_CommitRegeneratesDuplicateID(t *testing.T) {
	clash := "aaaaaaaaaaaaaaaaaaaaaaaa"
	existing := rec(clash, "existing.pdf", "application/pdf", 1, 0)

	ids := []string{"bbbbbbbbbbbbbbbbbbbbbbbb", "cccccccccccccccccccccccc"}
	var mu sync.Mutex
	transport := clashingTransport{id: clash}
	s, err := NewSession("sess-dup", []repository.FileRecord{existing}, Options{
		Clock:     testclock.New(baseTime),
		Transport: transport,
		Clipboard: ClipboardFunc(func(string) bool { return true }),
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Stage(NewBytesHandle("new.pdf", "application/pdf", []byte("x")))
	require.NoError(t, err)
	task, err := s.ConfirmUpload()
	require.NoError(t, err)
	waitTask(t, task)
	require.NoError(t, task.Err())

	assert.Equal(t, "cccccccccccccccccccccccc", task.Record().ID)
	got, err := s.Get(clash)
	require.NoError(t, err)
	assert.Equal(t, "existing.pdf", got.Metadata.DisplayName)
}

func TestSession_ShareIsDeterministic(t *testing.T) {
	withSource := rec("aaaaaaaaaaaaaaaaaaaaaaaa", "hero.png", "image/png", 1, 0)
	withSource.ShareSource = "https://cdn.example/hero.png"
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{withSource, plain})

	link, err := fx.session.Share(withSource.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/hero.png", link)

	first, err := fx.session.Share(plain.ID)
	require.NoError(t, err)
	second, err := fx.session.Share(plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://share.example/v1/share/bbbbbbbbbbbbbbbbbbbbbbbb", first)
	assert.Equal(t, first, second)
	assert.Equal(t, MsgShareGenerated, fx.session.Notification().Message)
	assert.Equal(t, 1, fx.clock.Pending())
}

func TestSession_CopyShareLink(t *testing.T) {
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{plain})
	s := fx.session

	link, ok, err := s.CopyShareLink(plain.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{link}, fx.copied)
	assert.Equal(t, MsgLinkCopied, s.Notification().Message)
	assert.True(t, s.Copied(ShareIndicator(plain.ID)))

	fx.clock.Advance(DefaultCopiedTTL)
	assert.False(t, s.Copied(ShareIndicator(plain.ID)))
	assert.True(t, s.Notification().Visible())
}

func TestSession_CopyFailureShowsError(t *testing.T) {
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{plain})
	fx.copyOK = false

	ok, err := fx.session.CopyID(plain.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, KindError, fx.session.Notification().Kind)
	assert.Equal(t, MsgCopyBlocked, fx.session.Notification().Message)
	assert.Empty(t, fx.session.State().Copied)
}

func TestSession_DownloadFailureLeavesStore(t *testing.T) {
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{plain})
	fx.transport.fetchErr = errors.New("blocked")

	_, body, err := fx.session.Download(context.Background(), plain.ID)
	assert.Nil(t, body)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, MsgDownloadFailed, fx.session.Notification().Message)
	assert.Len(t, fx.session.Records(), 1)
}

func TestSession_DownloadStreamsBytes(t *testing.T) {
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{plain})
	fx.transport.fetchBody = "%PDF-1.7"

	got, body, err := fx.session.Download(context.Background(), plain.ID)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, plain.ID, got.ID)
	assert.Equal(t, MsgDownloadPrepared, fx.session.Notification().Message)
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	plain := rec("bbbbbbbbbbbbbbbbbbbbbbbb", "brief.pdf", "application/pdf", 1, 0)
	fx := newFixture(t, []repository.FileRecord{plain})
	s := fx.session

	_, _, _ = s.CopyShareLink(plain.ID)
	_, err := s.Stage(NewBytesHandle("a.png", "image/png", []byte("a")))
	require.NoError(t, err)
	task, err := s.ConfirmUpload()
	require.NoError(t, err)
	<-fx.transport.submitted

	s.Close()
	waitTask(t, task)

	assert.Equal(t, 0, fx.clock.Pending())
	assert.Equal(t, 0, fx.previewer.liveCount())
	assert.ErrorIs(t, task.Err(), context.Canceled)
	_, err = s.Stage(NewBytesHandle("b.png", "image/png", nil))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_Stats(t *testing.T) {
	records := []repository.FileRecord{
		rec("aaaaaaaaaaaaaaaaaaaaaaaa", "a", "image/png", 10*1024*1024, 0),
		rec("bbbbbbbbbbbbbbbbbbbbbbbb", "b", "image/png", 15*1024*1024, 0),
	}
	fx := newFixture(t, records)

	stats := fx.session.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(25*1024*1024), stats.TotalBytes)
	assert.Equal(t, DefaultQuotaBytes, stats.QuotaBytes)
	assert.InDelta(t, 50.0, stats.PercentUsed, 0.0001)
}
