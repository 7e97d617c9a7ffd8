package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/monitoring"
	"mailverify/backend/internal/storage"
)

// VerificationDriver 驱动单个任务的批次验证流程。
//
// 状态机: PENDING -[Run]-> PROCESSING -> COMPLETED / FAILED。
// 单个任务内批次严格串行；不同任务可各自并发运行一个驱动器。
// 每条记录只写入一次终态，满足存储层的单次迁移前提。
type VerificationDriver struct {
	store      storage.JobRepository
	client     *VerifierClient
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewVerificationDriver 创建验证驱动器。metrics 可为 nil。
func NewVerificationDriver(
	store storage.JobRepository,
	client *VerifierClient,
	batchSize int,
	batchDelay time.Duration,
	logger *zap.Logger,
	metrics *monitoring.Metrics,
) *VerificationDriver {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &VerificationDriver{
		store:      store,
		client:     client,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run 启动并运行一个任务的验证流程，直到 COMPLETED 或 FAILED。
//
// 任务不存在返回 ErrJobNotFound，状态不是 PENDING 返回
// ErrJobNotPending（防止重复启动）。单批 API 调用失败不会中止
// 任务，只有意外错误（如上下文取消）才会把任务置为 FAILED 并
// 返回给调用方记录。
func (d *VerificationDriver) Run(ctx context.Context, jobID string) error {
	if err := d.store.ClaimJob(jobID); err != nil {
		return err
	}

	job, err := d.store.GetJob(jobID)
	if err != nil {
		return err
	}

	d.logger.Info("verification started",
		zap.String("job_id", jobID),
		zap.Int("total_emails", job.TotalEmails),
	)

	if err := d.process(ctx, jobID, job.Emails); err != nil {
		_ = d.store.UpdateJobStatus(jobID, domain.JobStatusFailed)
		_ = d.store.UpdateBatchInfo(jobID, nil)
		if d.metrics != nil {
			d.metrics.RecordJobFailed()
		}
		d.logger.Error("verification failed", zap.String("job_id", jobID), zap.Error(err))
		return err
	}

	_ = d.store.UpdateJobStatus(jobID, domain.JobStatusCompleted)
	_ = d.store.UpdateBatchInfo(jobID, nil)
	if d.metrics != nil {
		d.metrics.RecordJobCompleted()
	}
	d.logger.Info("verification completed", zap.String("job_id", jobID))
	return nil
}

// process 按固定批次大小串行处理全部邮箱记录。
func (d *VerificationDriver) process(ctx context.Context, jobID string, records []domain.EmailRecord) error {
	total := len(records)
	totalBatches := (total + d.batchSize - 1) / d.batchSize

	// 批次间固定间隔的限速器：首批立即放行，之后每批等待 batchDelay
	limiter := rate.NewLimiter(rate.Every(d.batchDelay), 1)

	for batch := 0; batch < totalBatches; batch++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		start := batch * d.batchSize
		end := start + d.batchSize
		if end > total {
			end = total
		}

		if err := d.store.UpdateBatchInfo(jobID, &domain.BatchInfo{
			CurrentBatch: batch + 1,
			TotalBatches: totalBatches,
			StartEmail:   start + 1,
			EndEmail:     end,
		}); err != nil {
			return err
		}

		d.processBatch(ctx, jobID, records[start:end], start)

		if d.metrics != nil {
			d.metrics.RecordBatchProcessed()
		}
	}

	return nil
}

// processBatch 处理单个批次：本地格式预检 + 一次外部 API 调用。
//
// 格式不合规的地址直接记为 INVALID_FORMAT，不提交外部调用。
// 外部调用失败时整批合规地址记为 API_ERROR，任务继续。
func (d *VerificationDriver) processBatch(ctx context.Context, jobID string, batch []domain.EmailRecord, offset int) {
	outbound := make([]string, 0, len(batch))
	outboundIdx := make([]int, 0, len(batch))

	for i, record := range batch {
		if domain.IsValidEmailFormat(record.Email) {
			outbound = append(outbound, record.Email)
			outboundIdx = append(outboundIdx, offset+i)
		} else {
			d.resolve(jobID, offset+i, domain.StatusInvalidFormat)
		}
	}

	if len(outbound) == 0 {
		return
	}

	results, err := d.client.VerifyBatch(ctx, outbound)
	if err != nil {
		d.logger.Warn("verification batch failed, marking emails as API_ERROR",
			zap.String("job_id", jobID),
			zap.Int("emails", len(outbound)),
			zap.Error(err),
		)
		for _, idx := range outboundIdx {
			d.resolve(jobID, idx, domain.StatusAPIError)
		}
		return
	}

	for n, idx := range outboundIdx {
		status, ok := results[outbound[n]]
		if !ok {
			// 响应中缺失的地址兜底为 API_ERROR
			status = domain.StatusAPIError
		}
		d.resolve(jobID, idx, status)
	}
}

// resolve 写入单条记录的终态并上报指标。
func (d *VerificationDriver) resolve(jobID string, index int, status domain.VerificationStatus) {
	d.store.UpdateEmailResult(jobID, index, status)
	if d.metrics != nil {
		d.metrics.RecordEmailVerified(string(status))
	}
}
