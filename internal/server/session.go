package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authdomain "github.com/connorodea/aidentalnotes/internal/auth/domain"
	"github.com/connorodea/aidentalnotes/internal/auth/password"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
)

type createTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createTokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// CreateToken exchanges email and password for a session token.
func (s *Server) CreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}
	if req.Password == "" {
		AbortWithError(c, newValidationError("password", "required", "password is required"))
		return
	}

	ctx := c.Request.Context()

	var user authdomain.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	// The plan claim is informational; quota checks always read the store.
	planTier := ""
	if license, err := s.licenseSvc.GetByUserID(ctx, user.UserID); err == nil {
		planTier = string(license.PlanTier)
	} else if !errors.Is(err, licensedomain.ErrLicenseNotFound) {
		AbortWithError(c, err)
		return
	}

	signed, err := s.tokenMgr.Issue(user.UserID, user.Email, planTier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := user.UserID
		_ = s.auditSvc.AuditLog(ctx, "user", user.UserID, "auth.token_issued", "user", &targetID, map[string]any{
			"email": user.Email,
		})
	}

	c.JSON(http.StatusOK, createTokenResponse{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(s.cfg.JWTExpiration.Seconds()),
	})
}
