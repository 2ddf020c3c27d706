package service

import "gridflow/internal/repository"

// Stats 汇总会话内全部记录的存储占用。
type Stats struct {
	Files       int     `json:"files"`
	TotalBytes  int64   `json:"total_bytes"`
	QuotaBytes  int64   `json:"quota_bytes"`
	PercentUsed float64 `json:"percent_used"`
}

// Stats 返回当前存储占用统计。
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() Stats {
	records, _ := s.store.Snapshot()
	return ComputeStats(records, s.quota)
}

// ComputeStats 计算总大小与配额占比，配额非正时占比为 0。
func ComputeStats(records []repository.FileRecord, quota int64) Stats {
	stats := Stats{Files: len(records), QuotaBytes: quota}
	for _, rec := range records {
		stats.TotalBytes += rec.SizeBytes
	}
	if quota > 0 {
		stats.PercentUsed = float64(stats.TotalBytes) / float64(quota) * 100
	}
	return stats
}
