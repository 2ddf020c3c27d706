package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridflow/internal/repository"
	"gridflow/internal/storage"
	"gridflow/internal/storage/local"
	"gridflow/internal/testclock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 12, 22, 12, 0, 0, 0, time.UTC)

func draft(name string) repository.FileRecord {
	return repository.FileRecord{
		ID:          "65c3d4e5f6a7b8c901234567",
		StorageName: "1a2b3c4d_" + name,
		ContentType: "application/pdf",
		SizeBytes:   4,
		UploadedAt:  start,
		Metadata:    repository.Metadata{DisplayName: name},
	}
}

func TestSimulated_SubmitWaitsForDelay(t *testing.T) {
	clk := testclock.New(start)
	tr := NewSimulated(clk, DefaultUploadDelay, nil)

	type result struct {
		rec repository.FileRecord
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := tr.Submit(context.Background(), draft("a.pdf"), strings.NewReader("%PDF"))
		done <- result{rec, err}
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	clk.Advance(time.Second)
	select {
	case <-done:
		t.Fatal("submit finished before the delay elapsed")
	default:
	}

	clk.Advance(500 * time.Millisecond)
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, draft("a.pdf"), res.rec)
	case <-time.After(time.Second):
		t.Fatal("submit did not finish")
	}
}

func TestSimulated_SubmitHonoursCancel(t *testing.T) {
	clk := testclock.New(start)
	tr := NewSimulated(clk, DefaultUploadDelay, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Submit(ctx, draft("a.pdf"), strings.NewReader("x"))
		errCh <- err
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("submit ignored cancellation")
	}
	assert.Equal(t, 0, clk.Pending())
}

func TestSimulated_FetchRemoteSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hero.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	tr := NewSimulated(testclock.New(start), 0, srv.Client())

	rec := draft("hero.png")
	rec.ShareSource = srv.URL + "/hero.png"
	body, err := tr.Fetch(context.Background(), rec)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "png-bytes", string(data))

	rec.ShareSource = srv.URL + "/missing.png"
	_, err = tr.Fetch(context.Background(), rec)
	assert.ErrorContains(t, err, "unexpected status 404")

	rec.ShareSource = ""
	_, err = tr.Fetch(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestStored_SubmitAndFetch(t *testing.T) {
	store, err := local.New(t.TempDir(), "https://files.example/objects")
	require.NoError(t, err)
	tr := NewStored(store, nil)

	rec, err := tr.Submit(context.Background(), draft("report.pdf"), strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/objects/1a2b3c4d_report.pdf", rec.ShareSource)

	body, err := tr.Fetch(context.Background(), rec)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "%PDF", string(data))
}

func TestStored_LocalURLIsNotShareSource(t *testing.T) {
	store, err := local.New(t.TempDir(), "/objects")
	require.NoError(t, err)
	tr := NewStored(store, nil)

	rec, err := tr.Submit(context.Background(), draft("report.pdf"), strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, rec.ShareSource)
}

func TestStored_FetchFallsBackToRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	store, err := local.New(t.TempDir(), "")
	require.NoError(t, err)
	tr := NewStored(store, srv.Client())

	rec := draft("seeded.pdf")
	_, err = tr.Fetch(context.Background(), rec)
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))

	rec.ShareSource = srv.URL + "/seeded.pdf"
	body, err := tr.Fetch(context.Background(), rec)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "remote", string(data))
}
