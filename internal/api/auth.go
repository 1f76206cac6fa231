package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}

// login opens an admin session and hands its token out as a cookie
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	ctx := c.Request.Context()
	session, err := h.gate.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if old := h.gate.Token(c); old != "" {
		if err := h.gate.Logout(ctx, old); err != nil {
			h.logger.Warn("Failed to drop previous session", zap.Error(err))
		}
	}

	h.gate.SetCookie(c, session)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// logout drops the caller's session, if any
func (h *Handler) logout(c *gin.Context) {
	if err := h.gate.Logout(c.Request.Context(), h.gate.Token(c)); err != nil {
		h.respondError(c, err)
		return
	}

	h.gate.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// session reports whether the caller holds a live admin session
func (h *Handler) session(c *gin.Context) {
	err := h.gate.Check(c.Request.Context(), h.gate.Token(c))
	c.JSON(http.StatusOK, gin.H{"authenticated": err == nil})
}
