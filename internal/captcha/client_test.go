package captcha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		Timeout:      timeout,
	}, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Solve(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.PostForm.Get("key"))
		assert.Equal(t, "hcaptcha", r.PostForm.Get("method"))
		assert.Equal(t, "site-123", r.PostForm.Get("sitekey"))
		assert.Equal(t, "https://example.test/form", r.PostForm.Get("pageurl"))
		fmt.Fprint(w, `{"status":1,"request":"42"}`)
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "get", r.URL.Query().Get("action"))
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
			return
		}
		fmt.Fprint(w, `{"status":1,"request":"token-xyz"}`)
	})

	client := newTestClient(t, mux, time.Second)
	token, err := client.Solve(context.Background(), "secret", "site-123", "https://example.test/form")
	require.NoError(t, err)
	assert.Equal(t, "token-xyz", token)
	assert.Equal(t, int32(3), polls.Load())
}

func TestClient_SolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		submit  string
		poll    string
		status  int
		wantErr string
	}{
		{
			name:    "submit rejected",
			submit:  `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`,
			status:  http.StatusOK,
			wantErr: "ERROR_WRONG_USER_KEY",
		},
		{
			name:    "unsolvable",
			submit:  `{"status":1,"request":"7"}`,
			poll:    `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`,
			status:  http.StatusOK,
			wantErr: "ERROR_CAPTCHA_UNSOLVABLE",
		},
		{
			name:    "http error",
			submit:  `oops`,
			status:  http.StatusBadGateway,
			wantErr: "unexpected status 502",
		},
		{
			name:    "malformed body",
			submit:  `not json`,
			status:  http.StatusOK,
			wantErr: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.submit)
			})
			mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.poll)
			})

			client := newTestClient(t, mux, time.Second)
			_, err := client.Solve(context.Background(), "secret", "site", "https://example.test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_APIErrorType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_ZERO_BALANCE"}`)
	})

	_, err := newTestClient(t, mux, time.Second).Solve(context.Background(), "secret", "site", "u")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ERROR_ZERO_BALANCE", apiErr.Code)
}

func TestClient_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"request":"1"}`)
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})

	_, err := newTestClient(t, mux, 50*time.Millisecond).Solve(context.Background(), "secret", "site", "u")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_MissingKey(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	_, err := client.Solve(context.Background(), "  ", "site", "u")
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, DefaultBaseURL, client.cfg.BaseURL)
	assert.Equal(t, DefaultMethod, client.cfg.Method)
}
