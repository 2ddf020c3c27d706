package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示目标记录不存在。
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateID 表示插入的记录 ID 已存在。
	ErrDuplicateID = errors.New("repository: duplicate record id")
	// ErrInvalidRecord 表示记录字段不满足约束（空 ID、负数大小等）。
	ErrInvalidRecord = errors.New("repository: invalid record")
)

// DuplicateIDError 携带冲突的 ID，errors.Is(err, ErrDuplicateID) 成立。
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("repository: duplicate record id %q", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}
