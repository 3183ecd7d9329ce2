package handler

import (
	"errors"
	"net/http"
	"strconv"

	"creditbot/internal/domain"
	"creditbot/internal/middleware"
	"creditbot/internal/models"
	"creditbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	stats       *service.StatsService
	ledger      *service.LedgerService
	withdrawals *service.WithdrawalService
	users       *service.UserService
	log         *logrus.Logger
}

func NewAdminHandler(
	stats *service.StatsService,
	ledger *service.LedgerService,
	withdrawals *service.WithdrawalService,
	users *service.UserService,
	log *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{stats: stats, ledger: ledger, withdrawals: withdrawals, users: users, log: log}
}

// Dashboard handles GET /admin/stats: overview numbers.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	st, err := h.stats.Collect(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListWithdrawals handles GET /admin/withdrawals: pending payout requests.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.withdrawals.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	h.processWithdrawal(c, true)
}

func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	h.processWithdrawal(c, false)
}

func (h *AdminHandler) processWithdrawal(c *gin.Context, approve bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	op := h.withdrawals.Reject
	if approve {
		op = h.withdrawals.Approve
	}
	w, err := op(c.Request.Context(), uint(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithFields(logrus.Fields{"admin_id": middleware.GetAdminID(c), "withdrawal_id": id, "status": w.Status}).
		Info("admin processed withdrawal")
	c.JSON(http.StatusOK, w)
}

// UserLedger handles GET /admin/users/:id: balance and recent credit history.
func (h *AdminHandler) UserLedger(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	u, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := h.ledger.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "history": history})
}

// AdjustCredits handles POST /admin/users/:id/credits.
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Delta int64  `json:"delta" binding:"required"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref := "admin:" + strconv.FormatInt(middleware.GetAdminID(c), 10)
	if req.Note != "" {
		ref += ":" + req.Note
	}
	if len(ref) > models.MaxReferenceLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "note too long"})
		return
	}
	balance, err := h.ledger.AdjustCredits(c.Request.Context(), userID, req.Delta, domain.ReasonAdmin, ref)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "credits": balance})
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrWithdrawalProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.IsUserRecoverable(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case domain.IsRetryable(err):
		h.log.WithError(err).Error("admin request failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	default:
		h.log.WithError(err).Error("admin request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
