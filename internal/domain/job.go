package domain

import (
	"time"
)

// JobStatus 表示验证任务的生命周期状态。
//
// 状态机: PENDING -> PROCESSING -> COMPLETED / FAILED。
// COMPLETED 和 FAILED 为终态，不允许回退。
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal 判断任务是否已进入终态。
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// VerificationStatus 表示单个邮箱地址的验证结果。
//
// 除 INVALID_FORMAT（本地格式预检）和 API_ERROR（调用失败兜底）外，
// 其余状态均为外部验证 API 原样返回的词汇。
type VerificationStatus string

const (
	StatusPending         VerificationStatus = "PENDING"
	StatusValid           VerificationStatus = "VALID"
	StatusInvalidDomain   VerificationStatus = "INVALID_DOMAIN"
	StatusNoMXRecords     VerificationStatus = "NO_MX_RECORDS"
	StatusInvalidFormat   VerificationStatus = "INVALID_FORMAT"
	StatusMailboxNotFound VerificationStatus = "MAILBOX_NOT_FOUND"
	StatusAPIError        VerificationStatus = "API_ERROR"
)

// StatusCounts 进度展示用的聚合计数。
// 只区分 VALID 与其余所有非 PENDING 状态（计入 INVALID）。
type StatusCounts struct {
	Valid   int `json:"VALID"`
	Invalid int `json:"INVALID"`
}

// BatchInfo 描述当前正在处理的批次（1 起始编号，区间两端含）。
type BatchInfo struct {
	CurrentBatch int `json:"currentBatch"`
	TotalBatches int `json:"totalBatches"`
	StartEmail   int `json:"startEmail"`
	EndEmail     int `json:"endEmail"`
}

// EmailRecord 表示一行输入对应的验证结果。
type EmailRecord struct {
	Email       string             `json:"email"`
	Status      VerificationStatus `json:"status"`
	OriginalRow map[string]string  `json:"originalRow"`
}

// VerificationJob 表示一次完整的上传到下载的验证任务。
type VerificationJob struct {
	JobID           string        `json:"jobId"`
	Status          JobStatus     `json:"status"`
	TotalEmails     int           `json:"totalEmails"`
	ProcessedCount  int           `json:"processedCount"`
	StatusCounts    StatusCounts  `json:"statusCounts"`
	Emails          []EmailRecord `json:"emails"`
	EmailColumnName string        `json:"emailColumnName"`
	CurrentBatch    *BatchInfo    `json:"currentBatch"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Progress 是对任务当前进度的只读快照。
type Progress struct {
	JobID          string       `json:"jobId"`
	Status         JobStatus    `json:"status"`
	TotalEmails    int          `json:"totalEmails"`
	ProcessedCount int          `json:"processedCount"`
	StatusCounts   StatusCounts `json:"statusCounts"`
	CurrentBatch   *BatchInfo   `json:"currentBatch"`
}
