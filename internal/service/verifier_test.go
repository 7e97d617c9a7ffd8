package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailverify/backend/internal/domain"
)

func newClient(url string) *VerifierClient {
	return NewVerifierClient(url, 2*time.Second, zap.NewNop(), nil)
}

func TestVerifierClient_VerifyBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		// 响应中的大小写会被规范化
		_, _ = w.Write([]byte(`{"results":[{"email":"A@X.com","status":"VALID"}]}`))
	}))
	defer server.Close()

	results, err := newClient(server.URL).VerifyBatch(context.Background(), []string{"a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValid, results["a@x.com"])
}

func TestVerifierClient_VerifyBatch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(server.URL).VerifyBatch(context.Background(), []string{"a@x.com"})
	assert.Error(t, err)
}

func TestVerifierClient_VerifyBatch_MalformedShape(t *testing.T) {
	cases := map[string]string{
		"非 JSON":      `not json`,
		"缺少 results":  `{"ok":true}`,
		"results 非数组": `{"results":"weird"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newClient(server.URL).VerifyBatch(context.Background(), []string{"a@x.com"})
			assert.Error(t, err)
		})
	}
}

func TestVerifierClient_VerifyBatch_Unreachable(t *testing.T) {
	// 指向已关闭的端口
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newClient(server.URL).VerifyBatch(context.Background(), []string{"a@x.com"})
	assert.Error(t, err)
}
