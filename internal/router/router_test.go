package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"creditbot/config"
	"creditbot/internal/app"
	"creditbot/internal/auth"
	"creditbot/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*gin.Engine, *config.Config, *app.Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:     config.ServerConfig{Env: "test", PublicURL: "https://bot.example"},
		JWT:        config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Hour, Issuer: "creditbot"},
		Processing: config.ProcessingConfig{WebhookPath: "/webhook"},
		Gateway:    config.GatewayConfig{ShopID: "42", Token: "secret", WebhookPath: "/rukassa/webhook"},
		Ledger:     config.LedgerConfig{RetryAttempts: 2, RetryBaseDelay: time.Millisecond, TaskTimeout: time.Hour},
		Referral: config.ReferralConfig{
			CommissionRate: decimal.RequireFromString("0.5"),
			MinWithdrawal:  decimal.NewFromInt(100),
		},
		Admin: config.AdminConfig{IDs: []int64{9}},
	}
	db := testutil.NewDB(t)
	log := testutil.Logger()
	svc := app.NewServices(cfg, db, app.Deps{}, log)
	return Setup(cfg, db, svc, nil, "credit_bot", log), cfg, svc
}

func do(engine *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	engine, _, _ := newEngine(t)
	require.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health", "", "").Code)
	require.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/metrics", "", "").Code)
	require.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/payment/success", "", "").Code)
}

func TestAdminRequiresToken(t *testing.T) {
	engine, cfg, _ := newEngine(t)
	require.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/v1/admin/stats", "", "").Code)

	outsider, err := auth.GenerateAccessToken(&cfg.JWT, 5)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, do(engine, http.MethodGet, "/api/v1/admin/stats", outsider, "").Code)
}

func TestAdminAdjustAndStats(t *testing.T) {
	engine, cfg, svc := newEngine(t)
	_, _, err := svc.Users.EnsureUser(context.Background(), 1, "alice")
	require.NoError(t, err)
	token, err := auth.GenerateAccessToken(&cfg.JWT, 9)
	require.NoError(t, err)

	w := do(engine, http.MethodPost, "/api/v1/admin/users/1/credits", token, `{"delta":5,"note":"gift"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(engine, http.MethodGet, "/api/v1/admin/stats", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Users              int64 `json:"users"`
		CreditsOutstanding int64 `json:"credits_outstanding"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Equal(t, int64(1), stats.Users)
	require.Equal(t, int64(5), stats.CreditsOutstanding)

	w = do(engine, http.MethodPost, "/api/v1/admin/users/1/credits", token, `{"delta":-6}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestAdminAdjustRejectsLongNote(t *testing.T) {
	engine, cfg, svc := newEngine(t)
	ctx := context.Background()
	_, _, err := svc.Users.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	token, err := auth.GenerateAccessToken(&cfg.JWT, 9)
	require.NoError(t, err)

	body := `{"delta":5,"note":"` + strings.Repeat("x", 130) + `"}`
	w := do(engine, http.MethodPost, "/api/v1/admin/users/1/credits", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	balance, err := svc.Ledger.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestProcessingWebhookUnknownTaskIsAcknowledged(t *testing.T) {
	engine, _, _ := newEngine(t)
	w := do(engine, http.MethodPost, "/webhook", "", `{"id_gen":"user_1_1","status":"500"}`)
	require.Equal(t, http.StatusOK, w.Code)
}
