package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"gridflow/internal/service"
	"gridflow/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxUploadSizeBytes    int64 = 50 * 1024 * 1024 // 50MB
	multipartMemoryBudget int64 = 16 * 1024 * 1024
)

// SessionHandler 暴露会话目录的 HTTP 端点。
type SessionHandler struct {
	sessions *session.Registry
	present  presenter
	logger   *zap.Logger
}

func NewSessionHandler(sessions *session.Registry, share service.ShareResolver, clock service.Clock, logger *zap.Logger) *SessionHandler {
	if clock == nil {
		clock = service.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		present:  presenter{share: share, clock: clock},
		logger:   logger,
	}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)

			r.Patch("/view", h.UpdateView)
			r.Post("/view/next", h.NextPage)
			r.Post("/view/prev", h.PrevPage)

			r.Post("/pending", h.StageUpload)
			r.Delete("/pending", h.DiscardUpload)
			r.Post("/pending/confirm", h.ConfirmUpload)

			r.Delete("/files/{id}", h.DeleteFile)
			r.Post("/files/{id}/share", h.ShareFile)
			r.Post("/files/{id}/share/copy", h.CopyShareLink)
			r.Post("/files/{id}/copy-id", h.CopyID)
			r.Get("/files/{id}/download", h.DownloadFile)

			r.Delete("/notification", h.DismissNotification)
		})
	})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) writeState(w http.ResponseWriter, status int, s *service.Session) {
	writeJSON(w, status, envelope{Data: h.present.state(s.State())})
}

// CreateSession 创建一个带种子数据的新会话。
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("创建会话失败", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unable to create session")
		return
	}
	h.writeState(w, http.StatusCreated, s)
}

// GetSession 返回会话的当前快照。
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeState(w, http.StatusOK, s)
}

// DeleteSession 关闭会话并释放全部资源。
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := h.sessions.Delete(sid); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": sid, "closed": true}})
}

type viewRequest struct {
	Search *string `json:"search"`
	Filter *string `json:"filter"`
	Sort   *string `json:"sort"`
	Page   *int    `json:"page"`
}

// UpdateView 修改搜索、过滤、排序或页码中的任意组合。
func (h *SessionHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	update := service.ViewUpdate{Search: req.Search, Page: req.Page}
	if req.Filter != nil {
		c, err := service.ParseCategory(*req.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update.Category = &c
	}
	if req.Sort != nil {
		k, err := service.ParseSortKey(*req.Sort)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update.Sort = &k
	}

	s.UpdateView(update)
	h.writeState(w, http.StatusOK, s)
}

func (h *SessionHandler) NextPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.NextPage()
	h.writeState(w, http.StatusOK, s)
}

func (h *SessionHandler) PrevPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.PrevPage()
	h.writeState(w, http.StatusOK, s)
}

// StageUpload 接受 multipart/form-data 的 file 字段并暂存，替换已有的暂存项。
func (h *SessionHandler) StageUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSizeBytes+multipartMemoryBudget)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	sizeBytes, err := determineFileSize(file, header)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sizeBytes > maxUploadSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds size limit (50MB)")
		return
	}

	contentType, err := resolveMimeType(header, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 表单临时文件在请求结束后删除，暂存项需要自己持有字节
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}

	pending, err := s.Stage(service.NewBytesHandle(header.Filename, contentType, data))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Debug("文件已暂存", zap.String("session", s.ID()), zap.String("name", pending.Name), zap.Int64("size", pending.SizeBytes))
	h.writeState(w, http.StatusOK, s)
}

// DiscardUpload 丢弃暂存项并取消进行中的上传。
func (h *SessionHandler) DiscardUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Discard()
	h.writeState(w, http.StatusOK, s)
}

// ConfirmUpload 启动异步上传并立即返回 202；带 wait=true 时等待上传结束再返回。
func (h *SessionHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	task, err := s.ConfirmUpload()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		h.writeState(w, http.StatusAccepted, s)
		return
	}

	select {
	case <-task.Done():
	case <-r.Context().Done():
		// 客户端断开不影响上传本身
		return
	}
	if err := task.Err(); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeState(w, http.StatusOK, s)
}

// DeleteFile 立即删除记录。
func (h *SessionHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeState(w, http.StatusOK, s)
}

type shareResponse struct {
	Link   string   `json:"link"`
	Copied *bool    `json:"copied,omitempty"`
	State  stateDTO `json:"state"`
}

// ShareFile 生成分享地址，前端据此渲染二维码。
func (h *SessionHandler) ShareFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	link, err := s.Share(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: shareResponse{Link: link, State: h.present.state(s.State())}})
}

// CopyShareLink 把分享地址写入剪贴板；剪贴板不可用不视为请求失败。
func (h *SessionHandler) CopyShareLink(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	link, copied, err := s.CopyShareLink(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: shareResponse{Link: link, Copied: &copied, State: h.present.state(s.State())}})
}

type copyResponse struct {
	ID     string   `json:"id"`
	Copied bool     `json:"copied"`
	State  stateDTO `json:"state"`
}

// CopyID 把记录 ID 写入剪贴板。
func (h *SessionHandler) CopyID(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	copied, err := s.CopyID(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: copyResponse{ID: id, Copied: copied, State: h.present.state(s.State())}})
}

// DownloadFile 以附件形式返回记录的字节。
func (h *SessionHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	rec, content, err := s.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrTransport) {
			h.logger.Warn("下载失败", zap.String("session", s.ID()), zap.String("id", rec.ID), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	defer content.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachmentDisposition(rec.DisplayName()))

	if _, err := io.Copy(w, content); err != nil {
		// 客户端可能已断开，无法再写入错误响应
		return
	}
}

// DismissNotification 关闭当前状态提示。
func (h *SessionHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Dismiss()
	h.writeState(w, http.StatusOK, s)
}
