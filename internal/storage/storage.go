package storage

import (
	"mailverify/backend/internal/domain"
)

// JobRepository 定义验证任务存储的访问契约。
//
// 所有写操作对单个任务而言必须是原子的：并发读取方不能观察到
// statusCounts 已更新而 processedCount 未更新之类的撕裂状态。
type JobRepository interface {
	// CreateJob 创建新任务并返回其快照。
	CreateJob(emails []string, rows []map[string]string, emailColumnName string) *domain.VerificationJob

	// GetJob 返回任务的深拷贝快照。
	GetJob(jobID string) (*domain.VerificationJob, error)

	// ClaimJob 原子地把 PENDING 任务置为 PROCESSING。
	// 任务不存在返回 ErrJobNotFound，状态不是 PENDING 返回 ErrJobNotPending。
	ClaimJob(jobID string) error

	// UpdateJobStatus 设置任务状态并刷新 updatedAt。
	// 不校验状态迁移是否合法，这一纪律由验证驱动器负责。
	UpdateJobStatus(jobID string, status domain.JobStatus) error

	// UpdateBatchInfo 替换当前批次快照（nil 表示无在途批次）。
	UpdateBatchInfo(jobID string, info *domain.BatchInfo) error

	// UpdateEmailResult 写入单条邮箱的验证结果并维护聚合计数。
	// 任务或下标不存在时静默忽略；状态未变化时幂等忽略。
	UpdateEmailResult(jobID string, index int, status domain.VerificationStatus)

	// DeleteJob 删除任务，返回是否存在。
	DeleteJob(jobID string) bool

	// CleanupOldJobs 删除超过保留窗口的任务，返回删除数量。
	CleanupOldJobs() int

	// Progress 返回任务进度快照。
	Progress(jobID string) (*domain.Progress, error)

	// EmailRecords 返回任务全部邮箱记录的拷贝（按创建顺序）。
	EmailRecords(jobID string) ([]domain.EmailRecord, error)

	// GetAllJobIDs 返回当前全部任务 ID（调试用）。
	GetAllJobIDs() []string

	// GetJobCount 返回当前任务数量。
	GetJobCount() int
}
