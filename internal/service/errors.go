package service

import "errors"

var (
	// ErrNoPendingUpload 表示当前没有待确认的上传。
	ErrNoPendingUpload = errors.New("service: no pending upload")
	// ErrUploadInProgress 表示已有上传正在进行。
	ErrUploadInProgress = errors.New("service: upload already in progress")
	// ErrTransport 包装传输层（上传、下载）失败。
	ErrTransport = errors.New("service: transport failure")
	// ErrSessionClosed 表示会话已关闭。
	ErrSessionClosed = errors.New("service: session closed")
	// ErrClipboard 表示剪贴板写入失败。
	ErrClipboard = errors.New("service: clipboard unavailable")
)
