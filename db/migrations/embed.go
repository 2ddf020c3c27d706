package migrations

import "embed"

// Files 内嵌全部 goose 迁移脚本。
//
//go:embed *.sql
var Files embed.FS
