package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailverify/backend/internal/domain"
	"mailverify/backend/internal/storage/memory"
)

func newJobService() (*JobService, *memory.Store) {
	store := memory.NewStore(time.Hour)
	return NewJobService(store, 5*1024*1024, 0, zap.NewNop(), nil), store
}

func TestJobService_Upload(t *testing.T) {
	svc, _ := newJobService()

	job, err := svc.Upload("emails.csv", 40, []byte("email\na@x.com\nB@Y.com\n"))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.TotalEmails)
	assert.Equal(t, "email", job.EmailColumnName)
	assert.Equal(t, "b@y.com", job.Emails[1].Email)
}

func TestJobService_Upload_Validation(t *testing.T) {
	svc, _ := newJobService()

	t.Run("非 csv 后缀被拒绝", func(t *testing.T) {
		_, err := svc.Upload("emails.txt", 10, []byte("email\na@x.com\n"))
		assert.ErrorIs(t, err, ErrInvalidFileType)
	})

	t.Run("超过大小上限被拒绝", func(t *testing.T) {
		_, err := svc.Upload("emails.csv", 6*1024*1024, []byte("email\na@x.com\n"))
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("解析不出邮箱返回 ErrNoEmails", func(t *testing.T) {
		_, err := svc.Upload("emails.csv", 20, []byte("email,name\n,Alice\n"))
		assert.ErrorIs(t, err, ErrNoEmails)
	})

	t.Run("空文件返回解析错误", func(t *testing.T) {
		_, err := svc.Upload("emails.csv", 0, []byte(""))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoEmails)
	})
}

func TestJobService_ExportResults(t *testing.T) {
	svc, store := newJobService()

	job, err := svc.Upload("emails.csv", 40, []byte("email\na@x.com\nbad-email\nb@y.com\n"))
	require.NoError(t, err)

	store.UpdateEmailResult(job.JobID, 0, domain.StatusValid)
	store.UpdateEmailResult(job.JobID, 1, domain.StatusInvalidFormat)
	store.UpdateEmailResult(job.JobID, 2, domain.StatusValid)

	out, err := svc.ExportResults(job.JobID)
	require.NoError(t, err)
	assert.Equal(t,
		"email,verification_status\na@x.com,VALID\nbad-email,INVALID_FORMAT\nb@y.com,VALID\n",
		out,
	)

	_, err = svc.ExportResults("nope")
	assert.ErrorIs(t, err, memory.ErrJobNotFound)
}

func TestJobService_Progress(t *testing.T) {
	svc, store := newJobService()

	job, err := svc.Upload("emails.csv", 30, []byte("email\na@x.com\nb@y.com\n"))
	require.NoError(t, err)

	store.UpdateEmailResult(job.JobID, 0, domain.StatusValid)

	progress, err := svc.Progress(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.TotalEmails)
	assert.Equal(t, 1, progress.ProcessedCount)
	assert.Equal(t, domain.StatusCounts{Valid: 1}, progress.StatusCounts)
}
