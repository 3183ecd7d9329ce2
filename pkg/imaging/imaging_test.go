package imaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("x-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "user_7_1", r.FormValue("id_gen"))
		require.Equal(t, "https://bot.example/webhook", r.FormValue("webhook"))
		require.Equal(t, "enhance", r.FormValue("operation"))
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		require.Equal(t, []byte("jpeg-bytes"), data)
		_, _ = w.Write([]byte(`{"queue_num": 3, "queue_time": 40, "api_balance": 12.5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/process", "key-1", "enhance", time.Second)
	res, err := c.Submit(context.Background(), SubmitRequest{
		Image:      []byte("jpeg-bytes"),
		TaskID:     "user_7_1",
		WebhookURL: "https://bot.example/webhook",
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.QueueNum)
	require.Equal(t, 40, res.QueueTime)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error": "Insufficient balance"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/process", "k", "", time.Second)
	_, err := c.Submit(context.Background(), SubmitRequest{Image: []byte("x"), TaskID: "t"})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSubmitErrorKinds(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"api error", http.StatusBadRequest, `{"error": "bad image"}`, false},
		{"server error", http.StatusServiceUnavailable, `oops`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "/process", "k", "", time.Second)
			_, err := c.Submit(context.Background(), SubmitRequest{Image: []byte("x"), TaskID: "t"})
			require.Error(t, err)
			require.Equal(t, tc.retryable, errors.Is(err, ErrUnavailable))
		})
	}
}
