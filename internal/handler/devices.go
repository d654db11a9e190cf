package handler

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrattend/internal/auth"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// ---------- Scanner devices ----------

// RegisterDevice enrols a scanner and issues its first token pair.
func (h *Handler) RegisterDevice(c *gin.Context) {
	if h.enrollKey != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Enroll-Key")), []byte(h.enrollKey)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid enrolment key"})
		return
	}
	var req struct {
		DeviceID string `json:"device_id" binding:"required,notblank"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.devices.UpsertDevice(ctx, req.DeviceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.issue(c, http.StatusCreated, req.DeviceID)
}

// RefreshDevice swaps a live refresh token for a new pair. Each refresh
// token can be used once.
func (h *Handler) RefreshDevice(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := h.signer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	deviceID, err := h.devices.RevokeRefreshToken(c.Request.Context(), req.RefreshToken, h.now())
	if errors.Is(err, auth.ErrTokenRejected) || (err == nil && deviceID != claims.Subject) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		log.Printf("refresh token lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token refresh failed"})
		return
	}
	h.issue(c, http.StatusOK, deviceID)
}

func (h *Handler) issue(c *gin.Context, status int, deviceID string) {
	tokens, err := h.signer.Issue(deviceID, "device")
	if err != nil {
		log.Printf("token issue failed for %s: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.devices.SaveRefreshToken(c.Request.Context(), deviceID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		log.Printf("save refresh token failed for %s: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Audit trail ----------

// ScanEvents pages through recorded scans, optionally for one user_id.
func (h *Handler) ScanEvents(c *gin.Context) {
	limit, offset := defaultEventLimit, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.events.ListScanEvents(c.Request.Context(), c.Query("user_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
