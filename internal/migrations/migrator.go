package migrations

import (
	"context"
	"database/sql"
	"fmt"

	dbmigrations "gridflow/db/migrations"

	"github.com/pressly/goose/v3"
)

// 便于测试替换 goose 调用。
var (
	gooseUp   = goose.UpContext
	gooseDown = goose.DownContext
)

func setup() error {
	goose.SetBaseFS(dbmigrations.Files)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Apply 执行 embed 的全部 up 迁移。
func Apply(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nil database connection")
	}
	if err := setup(); err != nil {
		return err
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Rollback 回滚最近一次迁移。
func Rollback(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nil database connection")
	}
	if err := setup(); err != nil {
		return err
	}
	if err := gooseDown(ctx, db, "."); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}
