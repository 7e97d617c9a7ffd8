package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mailverify/backend/internal/service"
)

const (
	// pushInterval 进度推送间隔
	pushInterval = 1 * time.Second

	// writeWait 单次写入超时
	writeWait = 10 * time.Second
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// ProgressHub 按固定间隔向客户端推送任务进度快照。
//
// 与轮询 /progress 相比，WebSocket 推送避免了前端高频请求；
// 快照内容与 HTTP 接口完全一致。
type ProgressHub struct {
	jobs     *service.JobService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewProgressHub 创建进度推送器。
func NewProgressHub(jobs *service.JobService, allowedOrigins []string, logger *zap.Logger) *ProgressHub {
	return &ProgressHub{
		jobs:     jobs,
		upgrader: upgraderFactory(allowedOrigins),
		logger:   logger,
	}
}

// Serve 处理 GET /v1/verify/progress/ws?jobId= 连接。
//
// 连接建立后立即推送一次快照，之后按 pushInterval 推送，
// 任务进入终态时推送最终快照并正常关闭连接。
func (h *ProgressHub) Serve(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_JOB_ID"})
		return
	}

	// 升级前先确认任务存在，避免为无效 ID 建立连接
	if _, err := h.jobs.Get(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "JOB_NOT_FOUND"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("progress websocket connected", zap.String("job_id", jobID))

	// 读取协程：消费控制帧并感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		progress, err := h.jobs.Progress(jobID)
		if err != nil {
			// 任务被清理或删除，通知客户端后关闭
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "job removed"),
				time.Now().Add(writeWait))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(progress); err != nil {
			h.logger.Debug("progress push failed",
				zap.String("job_id", jobID), zap.Error(err))
			return
		}

		if progress.Status.IsTerminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}

		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
