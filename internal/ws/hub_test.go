package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"creditbot/config"
	"creditbot/internal/auth"
	"creditbot/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesClients(t *testing.T) {
	hub := NewHub()
	c := &Client{AdminID: 1, Send: make(chan []byte, 1)}
	hub.Register(c)
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Publish(context.Background(), "payment.paid", map[string]int{"payment_id": 3}))
	var f struct {
		Event   string         `json:"event"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(<-c.Send, &f))
	require.Equal(t, "payment.paid", f.Event)
	require.Equal(t, 3, f.Payload["payment_id"])

	// Full buffer: the frame is dropped instead of blocking the publisher.
	require.NoError(t, hub.Publish(context.Background(), "a", nil))
	require.NoError(t, hub.Publish(context.Background(), "b", nil))

	require.NoError(t, hub.Close())
	require.Equal(t, 0, hub.ClientCount())
	require.NoError(t, hub.Publish(context.Background(), "after-close", nil))
}

func TestServeFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtCfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Hour, Issuer: "creditbot"}
	hub := NewHub()
	r := gin.New()
	r.GET("/feed", ServeFeed(jwtCfg, config.AdminConfig{IDs: []int64{9}}, hub, testutil.Logger()))
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	outsider, err := auth.GenerateAccessToken(jwtCfg, 5)
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(base+"?token="+outsider, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	token, err := auth.GenerateAccessToken(jwtCfg, 9)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), "task.completed", map[string]string{"task_id": "t1"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"event":"task.completed"`)
}
