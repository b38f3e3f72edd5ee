package handler

import (
	"net/http"
	"time"

	"indor_desk/internal/auth/service"
	"indor_desk/internal/auth/transport"
	"indor_desk/platform/httpkit"
	"indor_desk/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/v1/auth"

	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc          *service.Service
	val          *validator.Validator
	secureCookie bool
}

func New(svc *service.Service, val *validator.Validator, secureCookie bool) *Handler {
	return &Handler{svc: svc, val: val, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/logout", h.Logout)
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if httpkit.HandleError(c, err) {
		return
	}

	h.setRefreshCookie(c, resp.RefreshToken)
	httpkit.OK(c, resp)
}

func (h *Handler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		var req transport.RefreshRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
				return
			}
		}
		raw = req.RefreshToken
	}

	resp, err := h.svc.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.clearRefreshCookie(c)
		httpkit.HandleError(c, err)
		return
	}

	h.setRefreshCookie(c, resp.RefreshToken)
	httpkit.OK(c, resp)
}

// Logout only drops the cookie; refresh tokens are stateless and expire on their own.
func (h *Handler) Logout(c *gin.Context) {
	h.clearRefreshCookie(c)
	httpkit.OK(c, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	resp, err := h.svc.Me(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, value, int(h.svc.RefreshTTL()/time.Second), refreshCookiePath, "", h.secureCookie, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.secureCookie, true)
}
