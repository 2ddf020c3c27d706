package seed

import (
	"context"
	"database/sql"

	"gridflow/internal/repository"
	"gridflow/internal/repository/postgres"
)

// Lister 是读取种子表的最小接口。
type Lister interface {
	List(ctx context.Context, limit int) ([]repository.FileRecord, error)
}

// Postgres 在每次创建会话时读取 seed_files 表。
type Postgres struct {
	repo  Lister
	limit int
}

func NewPostgres(db *sql.DB, limit int) *Postgres {
	return &Postgres{repo: postgres.NewSeedRepository(db), limit: limit}
}

func (p *Postgres) Load(ctx context.Context) ([]repository.FileRecord, error) {
	return p.repo.List(ctx, p.limit)
}
