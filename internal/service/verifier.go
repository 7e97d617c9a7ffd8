package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/monitoring"
)

// BatchRequest 外部验证 API 的批量请求体。
type BatchRequest struct {
	Emails []string `json:"emails"`
}

// batchResult 外部 API 返回的单条结果。
type batchResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// batchResponse 外部 API 的响应体。
type batchResponse struct {
	Results []batchResult `json:"results"`
}

// VerifierClient 封装对外部邮箱验证 API 的调用。
//
// 任何传输错误、非 2xx 响应或响应结构不符合预期都作为整体失败
// 返回 error，由调用方（验证驱动器）把整批标记为 API_ERROR。
type VerifierClient struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewVerifierClient 创建验证 API 客户端。metrics 可为 nil。
func NewVerifierClient(apiURL string, timeout time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *VerifierClient {
	return &VerifierClient{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// VerifyBatch 提交一批邮箱地址并返回 地址(小写) -> 状态 的映射。
//
// API 返回的状态词汇原样透传；响应中缺失的地址由调用方兜底为
// API_ERROR。
func (c *VerifierClient) VerifyBatch(ctx context.Context, emails []string) (map[string]domain.VerificationStatus, error) {
	payload, err := json.Marshal(BatchRequest{Emails: emails})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.recordRequest("error", duration)
		return nil, fmt.Errorf("verification API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 读掉响应体以便连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.recordRequest("error", duration)
		return nil, fmt.Errorf("verification API returned HTTP %d", resp.StatusCode)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.recordRequest("error", duration)
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if decoded.Results == nil {
		c.recordRequest("error", duration)
		return nil, fmt.Errorf("verification API response missing results")
	}

	results := make(map[string]domain.VerificationStatus, len(decoded.Results))
	for _, result := range decoded.Results {
		results[domain.NormalizeEmail(result.Email)] = domain.VerificationStatus(result.Status)
	}

	c.recordRequest("success", duration)
	return results, nil
}

func (c *VerifierClient) recordRequest(outcome string, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordVerifierRequest(outcome, duration)
	}
}
