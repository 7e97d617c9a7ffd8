package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailverify/backend/internal/domain"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotPending = errors.New("job is not in pending status")
)

// Store 使用内存保存验证任务数据。
//
// 单个 RWMutex 保护整张任务表：任务的字段组更新（计数桶 +
// processedCount + updatedAt）在同一临界区内完成，读取方通过
// 深拷贝快照访问，不会观察到撕裂状态。
//
// 前提约定：每条邮箱记录至多发生一次 PENDING -> 终态 的状态迁移。
// UpdateEmailResult 在每次非幂等调用时无条件递增 processedCount，
// 重复迁移会导致 processedCount 虚高，存储层不做防御（由验证
// 驱动器保证该前提）。
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.VerificationJob
	retention time.Duration
}

// NewStore 创建一个内存任务存储。retention 为任务保留窗口，
// 超过该时长的任务会被 CleanupOldJobs 清理。
func NewStore(retention time.Duration) *Store {
	return &Store{
		jobs:      make(map[string]*domain.VerificationJob),
		retention: retention,
	}
}

// CreateJob 创建新任务：每个邮箱一条 PENDING 记录，原始行按下标
// 对应（行数不足时补空映射），计数清零，状态 PENDING。
func (s *Store) CreateJob(emails []string, rows []map[string]string, emailColumnName string) *domain.VerificationJob {
	now := time.Now().UTC()

	records := make([]domain.EmailRecord, len(emails))
	for i, email := range emails {
		row := map[string]string{}
		if i < len(rows) && rows[i] != nil {
			row = rows[i]
		}
		records[i] = domain.EmailRecord{
			Email:       email,
			Status:      domain.StatusPending,
			OriginalRow: row,
		}
	}

	job := &domain.VerificationJob{
		JobID:           uuid.NewString(),
		Status:          domain.JobStatusPending,
		TotalEmails:     len(emails),
		ProcessedCount:  0,
		StatusCounts:    domain.StatusCounts{},
		Emails:          records,
		EmailColumnName: emailColumnName,
		CurrentBatch:    nil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	return cloneJob(job)
}

// GetJob 根据 ID 返回任务快照。
func (s *Store) GetJob(jobID string) (*domain.VerificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// ClaimJob 原子地将 PENDING 任务置为 PROCESSING，用于防止重复启动。
func (s *Store) ClaimJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != domain.JobStatusPending {
		return ErrJobNotPending
	}
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateJobStatus 设置任务状态并刷新 updatedAt。
// 不校验迁移合法性，调用方（验证驱动器）负责状态机纪律。
func (s *Store) UpdateJobStatus(jobID string, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateBatchInfo 替换当前批次快照，nil 表示无在途批次。
func (s *Store) UpdateBatchInfo(jobID string, info *domain.BatchInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if info == nil {
		job.CurrentBatch = nil
	} else {
		clone := *info
		job.CurrentBatch = &clone
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateEmailResult 写入单条验证结果并维护聚合计数。
//
// 任务或下标不存在时静默忽略（处理流程不因下标错配而失败）。
// 新状态与旧状态相同时幂等忽略。否则：旧状态若已计数则先从对应
// 桶中扣减（PENDING 从未计数，跳过扣减），新状态按 VALID /
// 其余非 PENDING 计入对应桶，最后递增 processedCount。
func (s *Store) UpdateEmailResult(jobID string, index int, status domain.VerificationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if index < 0 || index >= len(job.Emails) {
		return
	}

	record := &job.Emails[index]
	oldStatus := record.Status
	if oldStatus == status {
		return
	}

	record.Status = status

	switch {
	case oldStatus == domain.StatusValid:
		job.StatusCounts.Valid--
	case oldStatus != domain.StatusPending:
		job.StatusCounts.Invalid--
	}

	switch {
	case status == domain.StatusValid:
		job.StatusCounts.Valid++
	case status != domain.StatusPending:
		job.StatusCounts.Invalid++
	}

	job.ProcessedCount++
	job.UpdatedAt = time.Now().UTC()
}

// DeleteJob 删除任务，返回是否存在。
func (s *Store) DeleteJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return false
	}
	delete(s.jobs, jobID)
	return true
}

// CleanupOldJobs 删除创建时间早于保留窗口的任务（不区分状态），
// 返回删除数量。由后台定时器周期性调用。
func (s *Store) CleanupOldJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-s.retention)
	count := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			count++
		}
	}
	return count
}

// Progress 返回任务的进度快照。
func (s *Store) Progress(jobID string) (*domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	progress := &domain.Progress{
		JobID:          job.JobID,
		Status:         job.Status,
		TotalEmails:    job.TotalEmails,
		ProcessedCount: job.ProcessedCount,
		StatusCounts:   job.StatusCounts,
	}
	if job.CurrentBatch != nil {
		clone := *job.CurrentBatch
		progress.CurrentBatch = &clone
	}
	return progress, nil
}

// EmailRecords 返回任务全部邮箱记录的拷贝，顺序与输入一致。
func (s *Store) EmailRecords(jobID string) ([]domain.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	records := make([]domain.EmailRecord, len(job.Emails))
	copy(records, job.Emails)
	return records, nil
}

// GetAllJobIDs 返回当前全部任务 ID（调试用）。
func (s *Store) GetAllJobIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// GetJobCount 返回当前任务数量。
func (s *Store) GetJobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// cloneJob 深拷贝任务，避免调用方观察到后续修改。
func cloneJob(job *domain.VerificationJob) *domain.VerificationJob {
	clone := *job
	clone.Emails = make([]domain.EmailRecord, len(job.Emails))
	copy(clone.Emails, job.Emails)
	if job.CurrentBatch != nil {
		batch := *job.CurrentBatch
		clone.CurrentBatch = &batch
	}
	return &clone
}
