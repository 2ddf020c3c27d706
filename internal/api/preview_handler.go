package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"gridflow/internal/preview"
	"gridflow/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PreviewHandler 提供暂存文件的本地预览。
type PreviewHandler struct {
	previews *preview.Registry
}

func NewPreviewHandler(previews *preview.Registry) *PreviewHandler {
	return &PreviewHandler{previews: previews}
}

func (h *PreviewHandler) RegisterRoutes(r chi.Router) {
	r.Get("/previews/{token}", h.ServePreview)
}

// ServePreview 以内联方式返回暂存字节，回收后返回 404。
func (h *PreviewHandler) ServePreview(w http.ResponseWriter, r *http.Request) {
	handle, err := h.previews.Lookup(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}

	rc, err := handle.Open()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open preview")
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read preview")
		return
	}

	w.Header().Set("Content-Type", handle.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, handle.Name(), time.Time{}, bytes.NewReader(data))
}

// ObjectHandler 按存储名读取对象存储中的字节，对应记录的默认下载地址。
type ObjectHandler struct {
	reader storage.Reader
	logger *zap.Logger
}

func NewObjectHandler(reader storage.Reader, logger *zap.Logger) *ObjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectHandler{reader: reader, logger: logger}
}

func (h *ObjectHandler) RegisterRoutes(r chi.Router) {
	r.Get("/files/{storageName}", h.GetObject)
}

// GetObject 返回对象内容。
func (h *ObjectHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reader == nil {
		writeError(w, http.StatusNotFound, "object storage disabled")
		return
	}

	key := chi.URLParam(r, "storageName")
	content, err := h.reader.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		h.logger.Warn("读取对象失败", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid object key")
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachmentDisposition(key))
	if _, err := io.Copy(w, content); err != nil {
		return
	}
}
