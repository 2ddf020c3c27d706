package service

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// NewObjectID 生成 24 位小写十六进制 ID（12 字节：时间戳、机器、进程、计数器）。
func NewObjectID() string {
	return hex.EncodeToString(xid.New().Bytes())
}

// StorageName 以随机 8 位十六进制前缀派生存储名。
func StorageName(name string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return token + "_" + name
}
