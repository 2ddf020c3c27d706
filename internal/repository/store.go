package repository

import (
	"sync"
)

// Store 是单个会话内的文件记录集合，按最近插入优先排列。
// 所有读写都在同一把锁下完成，视图计算不会看到半完成的变更。
type Store struct {
	mu       sync.RWMutex
	records  []FileRecord
	ids      map[string]struct{}
	revision uint64
}

// NewStore 以给定顺序装载初始记录。
func NewStore(initial []FileRecord) (*Store, error) {
	s := &Store{
		records: make([]FileRecord, 0, len(initial)),
		ids:     make(map[string]struct{}, len(initial)),
	}
	for _, rec := range initial {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.ids[rec.ID]; exists {
			return nil, &DuplicateIDError{ID: rec.ID}
		}
		s.ids[rec.ID] = struct{}{}
		s.records = append(s.records, rec.Clone())
	}
	return s, nil
}

// Insert 把记录放到集合头部；ID 冲突时返回 *DuplicateIDError 且集合保持不变。
func (s *Store) Insert(rec FileRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[rec.ID]; exists {
		return &DuplicateIDError{ID: rec.ID}
	}

	next := make([]FileRecord, 0, len(s.records)+1)
	next = append(next, rec.Clone())
	next = append(next, s.records...)
	s.records = next
	s.ids[rec.ID] = struct{}{}
	s.revision++
	return nil
}

// RemoveByID 删除指定记录，不存在时返回 ErrNotFound。
func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; !exists {
		return ErrNotFound
	}

	next := make([]FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.ID != id {
			next = append(next, rec)
		}
	}
	s.records = next
	delete(s.ids, id)
	s.revision++
	return nil
}

// Get 返回指定记录的副本。
func (s *Store) Get(id string) (FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return FileRecord{}, ErrNotFound
}

// Has 判断 ID 是否已被占用。
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// All 返回全部记录的深拷贝。
func (s *Store) All() []FileRecord {
	records, _ := s.Snapshot()
	return records
}

// Snapshot 原子地返回记录副本及当前修订号。
func (s *Store) Snapshot() ([]FileRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FileRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out, s.revision
}

// Len 返回记录数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
