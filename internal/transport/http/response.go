package httptransport

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`   // 机器可读错误码
	Message string `json:"message"` // 人类可读提示信息
}

// UploadResponse 上传成功响应
type UploadResponse struct {
	Success         bool   `json:"success"`
	JobID           string `json:"jobId"`
	TotalEmails     int    `json:"totalEmails"`
	EmailColumnName string `json:"emailColumnName"`
	Message         string `json:"message"`
}

// StartResponse 启动成功响应
type StartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// 错误码定义
const (
	CodeNoFile          = "NO_FILE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeNoEmails        = "NO_EMAILS"
	CodeProcessingError = "PROCESSING_ERROR"
	CodeInvalidJobID    = "INVALID_JOB_ID"
	CodeJobNotFound     = "JOB_NOT_FOUND"
	CodeJobStarted      = "JOB_ALREADY_STARTED"
	CodeJobNotCompleted = "JOB_NOT_COMPLETED"
	CodeServerBusy      = "SERVER_BUSY"
)

// Fail 按统一结构返回错误响应
func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}
