package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailverify/backend/internal/csvio"
	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/monitoring"
	"mailverify/backend/internal/storage"
)

var (
	ErrInvalidFileType = errors.New("only csv files are allowed")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrNoEmails        = errors.New("no valid emails found in file")
)

// JobService 封装任务创建、进度查询与结果导出。
type JobService struct {
	store            storage.JobRepository
	maxFileSize      int64
	emailColumnIndex int
	logger           *zap.Logger
	metrics          *monitoring.Metrics
}

// NewJobService 创建任务业务服务。metrics 可为 nil。
func NewJobService(store storage.JobRepository, maxFileSize int64, emailColumnIndex int, logger *zap.Logger, metrics *monitoring.Metrics) *JobService {
	return &JobService{
		store:            store,
		maxFileSize:      maxFileSize,
		emailColumnIndex: emailColumnIndex,
		logger:           logger,
		metrics:          metrics,
	}
}

// Upload 校验上传文件并创建 PENDING 任务。
func (s *JobService) Upload(filename string, size int64, data []byte) (*domain.VerificationJob, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, ErrInvalidFileType
	}
	if size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	parsed, err := csvio.Parse(data, s.emailColumnIndex)
	if err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	if len(parsed.Emails) == 0 {
		return nil, ErrNoEmails
	}

	job := s.store.CreateJob(parsed.Emails, parsed.Rows, parsed.EmailColumnName)

	if s.metrics != nil {
		s.metrics.RecordJobCreated()
	}
	s.logger.Info("verification job created",
		zap.String("job_id", job.JobID),
		zap.Int("total_emails", job.TotalEmails),
		zap.String("email_column", job.EmailColumnName),
	)

	return job, nil
}

// Get 返回任务快照。
func (s *JobService) Get(jobID string) (*domain.VerificationJob, error) {
	return s.store.GetJob(jobID)
}

// Progress 返回任务进度快照。
func (s *JobService) Progress(jobID string) (*domain.Progress, error) {
	return s.store.Progress(jobID)
}

// ExportResults 将任务结果导出为两列 CSV（email,verification_status），
// 顺序与输入一致。约定只在任务 COMPLETED 后调用，状态由 HTTP 层
// 把关，这里不再复查。
func (s *JobService) ExportResults(jobID string) (string, error) {
	records, err := s.store.EmailRecords(jobID)
	if err != nil {
		return "", err
	}

	rows := make([]csvio.ResultRow, len(records))
	for i, record := range records {
		rows[i] = csvio.ResultRow{
			Email:              record.Email,
			VerificationStatus: string(record.Status),
		}
	}
	return csvio.Generate(rows), nil
}
