// Package service 包含了应用的业务逻辑层。
package service

import "errors"

var (
	ErrModuleRequired      = errors.New("尚未選擇模塊")
	ErrUnknownModule       = errors.New("模塊不存在")
	ErrBodyRequired        = errors.New("反饋內容不可為空")
	ErrInvalidFeedbackType = errors.New("無效的反饋類型")
	ErrSubmissionInFlight  = errors.New("上一次提交尚未完成")
	ErrFileNotFound        = errors.New("找不到檔案紀錄")
)
