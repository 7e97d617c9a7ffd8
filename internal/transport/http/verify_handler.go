package httptransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/pool"
	"mailverify/backend/internal/service"
	"mailverify/backend/internal/storage/memory"
)

// VerifyHandler 聚合验证流程的全部 HTTP 处理逻辑。
type VerifyHandler struct {
	jobs    *service.JobService
	driver  *service.VerificationDriver
	pool    *pool.WorkerPool
	rootCtx context.Context
	logger  *zap.Logger
}

// NewVerifyHandler 创建验证处理器。
//
// rootCtx 是驱动器后台运行所用的根上下文：/start 返回 202 后
// 驱动器继续运行，其生命周期跟随进程而不是请求。
func NewVerifyHandler(
	jobs *service.JobService,
	driver *service.VerificationDriver,
	workerPool *pool.WorkerPool,
	rootCtx context.Context,
	logger *zap.Logger,
) *VerifyHandler {
	return &VerifyHandler{
		jobs:    jobs,
		driver:  driver,
		pool:    workerPool,
		rootCtx: rootCtx,
		logger:  logger,
	}
}

// Upload 处理 CSV 上传并创建 PENDING 任务。
//
// POST /v1/verify/upload (multipart, 字段名 file)
func (h *VerifyHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		Fail(c, http.StatusBadRequest, CodeNoFile, MsgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read upload failed", zap.Error(err))
		Fail(c, http.StatusInternalServerError, CodeProcessingError, MsgProcessingError)
		return
	}

	job, err := h.jobs.Upload(header.Filename, header.Size, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFileType):
			Fail(c, http.StatusBadRequest, CodeInvalidFileType, MsgInvalidFileType)
		case errors.Is(err, service.ErrFileTooLarge):
			Fail(c, http.StatusBadRequest, CodeFileTooLarge, MsgFileTooLarge)
		case errors.Is(err, service.ErrNoEmails):
			Fail(c, http.StatusBadRequest, CodeNoEmails, MsgNoEmails)
		default:
			h.logger.Warn("upload processing failed", zap.Error(err))
			Fail(c, http.StatusInternalServerError, CodeProcessingError, MsgProcessingError)
		}
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Success:         true,
		JobID:           job.JobID,
		TotalEmails:     job.TotalEmails,
		EmailColumnName: job.EmailColumnName,
		Message:         MsgUploadOK,
	})
}

// startRequest /start 请求体
type startRequest struct {
	JobID string `json:"jobId"`
}

// Start 触发后台验证，不等待完成。
//
// POST /v1/verify/start
func (h *VerifyHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.JobID == "" {
		Fail(c, http.StatusBadRequest, CodeInvalidJobID, MsgInvalidJobID)
		return
	}

	job, err := h.jobs.Get(req.JobID)
	if err != nil {
		Fail(c, http.StatusNotFound, CodeJobNotFound, MsgJobNotFound)
		return
	}
	if job.Status != domain.JobStatusPending {
		Fail(c, http.StatusBadRequest, CodeJobStarted,
			fmt.Sprintf("%s（当前状态: %s）", MsgJobStarted, job.Status))
		return
	}

	jobID := req.JobID
	submitted := h.pool.TrySubmit(func() {
		// 正常与异常结束都由驱动器写回任务状态并记录日志；
		// 并发启动竞争在 ClaimJob 处收敛，这里只需吞掉错误。
		if err := h.driver.Run(h.rootCtx, jobID); err != nil &&
			!errors.Is(err, memory.ErrJobNotPending) {
			h.logger.Error("verification run failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	})
	if !submitted {
		Fail(c, http.StatusServiceUnavailable, CodeServerBusy, MsgServerBusy)
		return
	}

	c.JSON(http.StatusAccepted, StartResponse{
		Success: true,
		Message: MsgStartOK,
	})
}

// Progress 返回任务进度快照。
//
// GET /v1/verify/progress?jobId=
func (h *VerifyHandler) Progress(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		Fail(c, http.StatusBadRequest, CodeInvalidJobID, MsgInvalidJobID)
		return
	}

	progress, err := h.jobs.Progress(jobID)
	if err != nil {
		Fail(c, http.StatusNotFound, CodeJobNotFound, MsgJobNotFound)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Download 下载已完成任务的结果 CSV。
//
// GET /v1/verify/download?jobId=
func (h *VerifyHandler) Download(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		Fail(c, http.StatusBadRequest, CodeInvalidJobID, MsgInvalidJobID)
		return
	}

	job, err := h.jobs.Get(jobID)
	if err != nil {
		Fail(c, http.StatusNotFound, CodeJobNotFound, MsgJobNotFound)
		return
	}
	if job.Status != domain.JobStatusCompleted {
		Fail(c, http.StatusBadRequest, CodeJobNotCompleted,
			fmt.Sprintf("%s（当前状态: %s）", MsgJobNotCompleted, job.Status))
		return
	}

	csvData, err := h.jobs.ExportResults(jobID)
	if err != nil {
		h.logger.Error("export results failed", zap.String("job_id", jobID), zap.Error(err))
		Fail(c, http.StatusInternalServerError, CodeProcessingError, MsgExportFailed)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="verified-emails-%s.csv"`, jobID))
	c.Data(http.StatusOK, "text/csv", []byte(csvData))
}
