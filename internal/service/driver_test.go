package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/storage/memory"
)

// fakeVerifierAPI 模拟外部验证 API
type fakeVerifierAPI struct {
	mu       sync.Mutex
	statuses map[string]string // email -> status，未配置时返回 VALID
	failCall int               // 第 N 次调用返回 500（0 表示不失败）
	omit     map[string]bool   // 响应中故意缺失的地址
	calls    int
	received [][]string
}

func (f *fakeVerifierAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.calls++
		call := f.calls
		f.received = append(f.received, req.Emails)
		f.mu.Unlock()

		if f.failCall != 0 && call == f.failCall {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		results := make([]map[string]string, 0, len(req.Emails))
		for _, email := range req.Emails {
			if f.omit[email] {
				continue
			}
			status := "VALID"
			if s, ok := f.statuses[email]; ok {
				status = s
			}
			results = append(results, map[string]string{"email": email, "status": status})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}
}

// recordingStore 包装内存存储，记录 BatchInfo 快照序列
type recordingStore struct {
	*memory.Store
	mu      sync.Mutex
	batches []*domain.BatchInfo
}

func (r *recordingStore) UpdateBatchInfo(jobID string, info *domain.BatchInfo) error {
	r.mu.Lock()
	if info != nil {
		clone := *info
		r.batches = append(r.batches, &clone)
	} else {
		r.batches = append(r.batches, nil)
	}
	r.mu.Unlock()
	return r.Store.UpdateBatchInfo(jobID, info)
}

func newDriverFixture(t *testing.T, api *fakeVerifierAPI, batchSize int) (*VerificationDriver, *recordingStore, func()) {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	store := &recordingStore{Store: memory.NewStore(time.Hour)}
	client := NewVerifierClient(server.URL, 5*time.Second, zap.NewNop(), nil)
	driver := NewVerificationDriver(store, client, batchSize, time.Millisecond, zap.NewNop(), nil)
	return driver, store, server.Close
}

func createJob(store *recordingStore, emails ...string) string {
	rows := make([]map[string]string, len(emails))
	for i, email := range emails {
		rows[i] = map[string]string{"email": email}
	}
	return store.CreateJob(emails, rows, "email").JobID
}

func TestDriver_Run_ScenarioA(t *testing.T) {
	// 3 封邮件：1 封格式非法本地拦截，2 封外部返回 VALID
	api := &fakeVerifierAPI{}
	driver, store, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	jobID := createJob(store, "a@x.com", "bad-email", "b@y.com")

	require.NoError(t, driver.Run(context.Background(), jobID))

	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.ProcessedCount)
	assert.Equal(t, domain.StatusCounts{Valid: 2, Invalid: 1}, job.StatusCounts)
	assert.Equal(t, domain.StatusValid, job.Emails[0].Status)
	assert.Equal(t, domain.StatusInvalidFormat, job.Emails[1].Status)
	assert.Equal(t, domain.StatusValid, job.Emails[2].Status)
	assert.Nil(t, job.CurrentBatch)

	// 格式非法的地址不得出现在外部调用中
	require.Len(t, api.received, 1)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, api.received[0])
}

func TestDriver_Run_ScenarioB_BatchPartition(t *testing.T) {
	// 250 封邮件、批大小 100 -> 恰好 3 个批次快照，收尾置 nil
	api := &fakeVerifierAPI{}
	driver, store, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	emails := make([]string, 250)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@example.com", i)
	}
	jobID := createJob(store, emails...)

	// 启动前无在途批次
	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Nil(t, job.CurrentBatch)

	require.NoError(t, driver.Run(context.Background(), jobID))

	expected := []*domain.BatchInfo{
		{CurrentBatch: 1, TotalBatches: 3, StartEmail: 1, EndEmail: 100},
		{CurrentBatch: 2, TotalBatches: 3, StartEmail: 101, EndEmail: 200},
		{CurrentBatch: 3, TotalBatches: 3, StartEmail: 201, EndEmail: 250},
		nil,
	}
	assert.Equal(t, expected, store.batches)

	job, err = store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 250, job.ProcessedCount)
	assert.Nil(t, job.CurrentBatch)
	assert.Equal(t, 3, api.calls)
}

func TestDriver_Run_BatchFailureContainment(t *testing.T) {
	// 第 2 批外部调用失败：该批全部 API_ERROR，前后批不受影响，任务仍 COMPLETED
	api := &fakeVerifierAPI{failCall: 2}
	driver, store, cleanup := newDriverFixture(t, api, 2)
	defer cleanup()

	jobID := createJob(store,
		"a1@x.com", "a2@x.com", // batch 1
		"b1@x.com", "b2@x.com", // batch 2 (fails)
		"c1@x.com", // batch 3
	)

	require.NoError(t, driver.Run(context.Background(), jobID))

	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, domain.StatusValid, job.Emails[0].Status)
	assert.Equal(t, domain.StatusValid, job.Emails[1].Status)
	assert.Equal(t, domain.StatusAPIError, job.Emails[2].Status)
	assert.Equal(t, domain.StatusAPIError, job.Emails[3].Status)
	assert.Equal(t, domain.StatusValid, job.Emails[4].Status)
	assert.Equal(t, 5, job.ProcessedCount)
	assert.Equal(t, domain.StatusCounts{Valid: 3, Invalid: 2}, job.StatusCounts)
}

func TestDriver_Run_MissingAddressDefaultsToAPIError(t *testing.T) {
	api := &fakeVerifierAPI{omit: map[string]bool{"ghost@x.com": true}}
	driver, store, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	jobID := createJob(store, "a@x.com", "ghost@x.com")

	require.NoError(t, driver.Run(context.Background(), jobID))

	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValid, job.Emails[0].Status)
	assert.Equal(t, domain.StatusAPIError, job.Emails[1].Status)
}

func TestDriver_Run_StatusPassthrough(t *testing.T) {
	api := &fakeVerifierAPI{statuses: map[string]string{
		"nomx@x.com":   "NO_MX_RECORDS",
		"baddom@x.com": "INVALID_DOMAIN",
		"nobody@x.com": "MAILBOX_NOT_FOUND",
	}}
	driver, store, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	jobID := createJob(store, "nomx@x.com", "baddom@x.com", "nobody@x.com")

	require.NoError(t, driver.Run(context.Background(), jobID))

	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoMXRecords, job.Emails[0].Status)
	assert.Equal(t, domain.StatusInvalidDomain, job.Emails[1].Status)
	assert.Equal(t, domain.StatusMailboxNotFound, job.Emails[2].Status)
	assert.Equal(t, domain.StatusCounts{Valid: 0, Invalid: 3}, job.StatusCounts)
}

func TestDriver_Run_DoubleStartRejected(t *testing.T) {
	api := &fakeVerifierAPI{}
	driver, store, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	jobID := createJob(store, "a@x.com")

	require.NoError(t, driver.Run(context.Background(), jobID))

	// 已完成的任务不可重复启动，且不会被重置
	err := driver.Run(context.Background(), jobID)
	assert.ErrorIs(t, err, memory.ErrJobNotPending)

	job, getErr := store.GetJob(jobID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.ProcessedCount)
	assert.Equal(t, 1, api.calls)
}

func TestDriver_Run_JobNotFound(t *testing.T) {
	api := &fakeVerifierAPI{}
	driver, _, cleanup := newDriverFixture(t, api, 100)
	defer cleanup()

	err := driver.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, memory.ErrJobNotFound)
}

func TestDriver_Run_CancelledContextFailsJob(t *testing.T) {
	api := &fakeVerifierAPI{}
	driver, store, cleanup := newDriverFixture(t, api, 1)
	defer cleanup()

	jobID := createJob(store, "a@x.com", "b@x.com", "c@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.Run(ctx, jobID)
	require.Error(t, err)

	job, getErr := store.GetJob(jobID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Nil(t, job.CurrentBatch)
}
