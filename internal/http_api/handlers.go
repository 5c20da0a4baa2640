package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucrumlabs/lucrum/internal/lucrum"
	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/validation"
)

// BalanceResponse represents the balance figures for the dashboard
type BalanceResponse struct {
	Balance    float64 `json:"balance"`
	Highest    float64 `json:"highest"`
	DailyGains float64 `json:"daily_gains"`
}

// StatsResponse represents the global vanity counters
type StatsResponse struct {
	AdsCount     int64   `json:"ads_count"`
	RevenueCount float64 `json:"revenue_count"`
	StorageDate  string  `json:"storage_date"`
}

// BotStatusRequest represents the JSON body for forcing the bot status
type BotStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active paused stopped"`
	Reason string `json:"reason" binding:"omitempty,oneof=manual limit"`
}

// WithdrawResponse represents the success response for a withdrawal
type WithdrawResponse struct {
	Success bool    `json:"success"`
	Amount  float64 `json:"amount"`
}

// userID extracts and validates the X-User-ID header. An empty or malformed
// header aborts the request; the core never sees an unauthenticated user.
func (s *HTTPServer) userID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
		return "", false
	}
	if err := validation.ValidateUserID(userID); err != nil {
		s.logger.Debug("Invalid user ID", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID: " + err.Error()})
		return "", false
	}
	return userID, true
}

// getBalance is a handler for the /balance endpoint.
func (s *HTTPServer) getBalance(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	current, highest, gains := s.engine.BalanceState(userID)
	c.JSON(http.StatusOK, BalanceResponse{
		Balance:    current,
		Highest:    highest,
		DailyGains: gains,
	})
}

// getLimit is a handler for the /limit endpoint.
func (s *HTTPServer) getLimit(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.engine.LimitState(userID))
}

// getStats is a handler for the /stats endpoint. The counters are global, no
// user header needed.
func (s *HTTPServer) getStats(c *gin.Context) {
	counters := s.engine.Counters()
	c.JSON(http.StatusOK, StatsResponse{
		AdsCount:     counters.AdsCount,
		RevenueCount: counters.RevenueCount,
		StorageDate:  counters.StorageDate,
	})
}

// getBotStatus is a handler for GET /bot.
func (s *HTTPServer) getBotStatus(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	status, reason := s.engine.BotStatus(userID)
	c.JSON(http.StatusOK, gin.H{"status": status, "reason": reason})
}

// getTransactions is a handler for the /transactions endpoint. It returns the
// recent earning and withdrawal history.
func (s *HTTPServer) getTransactions(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	txs, err := s.engine.Transactions(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Transaction history read failed", "error", err, "user", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read transactions"})
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

// startSession is a handler for POST /session. It runs one bot earning
// session and returns the gain and the limit state after it.
func (s *HTTPServer) startSession(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	result, err := s.engine.StartSession(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, lucrum.ErrLimitReached):
			// The limit state still renders; the session just earned nothing.
			c.JSON(http.StatusOK, result)
		case errors.Is(err, lucrum.ErrSessionQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.Is(err, lucrum.ErrBotNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.logger.Error("Session failed", "error", err, "user", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// withdraw is a handler for POST /withdraw.
func (s *HTTPServer) withdraw(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	amount, err := s.engine.Withdraw(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, lucrum.ErrNothingToWithdraw) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Withdrawal failed", "error", err, "user", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		return
	}

	c.JSON(http.StatusOK, WithdrawResponse{Success: true, Amount: amount})
}

// setBotStatus is a handler for POST /bot. It forces the bot state.
func (s *HTTPServer) setBotStatus(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req BotStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = models.PauseReasonManual
	}
	s.engine.SetBotStatus(userID, models.BotStatus(req.Status), reason)

	status, statusReason := s.engine.BotStatus(userID)
	c.JSON(http.StatusOK, gin.H{"status": status, "reason": statusReason})
}

// activateTrial is a handler for POST /trial.
func (s *HTTPServer) activateTrial(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	state, err := s.engine.ActivateTrial(userID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}
