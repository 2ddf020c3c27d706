package api

import (
	"slices"
	"time"

	"gridflow/internal/present"
	"gridflow/internal/repository"
	"gridflow/internal/service"
)

type tagDTO struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

type fileDTO struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	StorageName string              `json:"storage_name"`
	ContentType string              `json:"content_type"`
	SizeBytes   int64               `json:"size_bytes"`
	Size        string              `json:"size"`
	UploadedAt  time.Time           `json:"uploaded_at"`
	Uploaded    string              `json:"uploaded"`
	Tags        []tagDTO            `json:"tags"`
	Metadata    repository.Metadata `json:"metadata"`
	ShareLink   string              `json:"share_link"`
	DownloadURL string              `json:"download_url"`
	Source      string              `json:"download_source"`
	LinkCopied  bool                `json:"link_copied"`
	IDCopied    bool                `json:"id_copied"`
}

type pendingDTO struct {
	service.PendingUpload
	Size string `json:"size"`
}

type statsDTO struct {
	service.Stats
	Total string `json:"total"`
	Quota string `json:"quota"`
}

type stateDTO struct {
	ID           string                `json:"id"`
	Items        []fileDTO             `json:"items"`
	Matched      int                   `json:"matched"`
	Page         int                   `json:"page"`
	TotalPages   int                   `json:"total_pages"`
	PageSize     int                   `json:"page_size"`
	ViewState    service.ViewState     `json:"view_state"`
	Pending      *pendingDTO           `json:"pending"`
	Uploading    bool                  `json:"uploading"`
	Notification *service.Notification `json:"notification"`
	Stats        statsDTO              `json:"stats"`
}

// presenter 把会话快照转换成界面直接渲染的结构。
type presenter struct {
	share service.ShareResolver
	clock service.Clock
}

func (p presenter) state(st service.State) stateDTO {
	now := p.clock.Now()
	out := stateDTO{
		ID:         st.ID,
		Items:      make([]fileDTO, 0, len(st.View.Items)),
		Matched:    st.View.Matched,
		Page:       st.View.Page,
		TotalPages: st.View.TotalPages,
		PageSize:   st.View.PageSize,
		ViewState:  st.ViewState,
		Uploading:  st.Uploading,
		Stats: statsDTO{
			Stats: st.Stats,
			Total: present.FormatSize(st.Stats.TotalBytes),
			Quota: present.FormatSize(st.Stats.QuotaBytes),
		},
	}
	for _, rec := range st.View.Items {
		dto := p.file(rec, sessionDownloadURL(st.ID, rec.ID), now)
		dto.LinkCopied = slices.Contains(st.Copied, service.ShareIndicator(rec.ID))
		dto.IDCopied = slices.Contains(st.Copied, service.IDIndicator(rec.ID))
		out.Items = append(out.Items, dto)
	}
	if st.Pending != nil {
		out.Pending = &pendingDTO{PendingUpload: *st.Pending, Size: present.FormatSize(st.Pending.SizeBytes)}
	}
	if st.Notification.Visible() {
		n := st.Notification
		out.Notification = &n
	}
	return out
}

func (p presenter) file(rec repository.FileRecord, downloadURL string, now time.Time) fileDTO {
	tags := make([]tagDTO, 0, len(rec.Metadata.Tags))
	for _, tag := range rec.Metadata.Tags {
		tags = append(tags, tagDTO{Label: tag, Tone: present.TagTone(tag)})
	}
	return fileDTO{
		ID:          rec.ID,
		Name:        rec.DisplayName(),
		StorageName: rec.StorageName,
		ContentType: rec.ContentType,
		SizeBytes:   rec.SizeBytes,
		Size:        present.FormatSize(rec.SizeBytes),
		UploadedAt:  rec.UploadedAt,
		Uploaded:    present.RelativeTime(rec.UploadedAt, now),
		Tags:        tags,
		Metadata:    rec.Metadata,
		ShareLink:   p.share.Resolve(rec),
		DownloadURL: downloadURL,
		Source:      service.DownloadSource(rec),
	}
}

func sessionDownloadURL(sessionID, fileID string) string {
	return "/api/sessions/" + sessionID + "/files/" + fileID + "/download"
}
