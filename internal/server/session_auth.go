package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/connorodea/aidentalnotes/internal/auditcontext"
	authdomain "github.com/connorodea/aidentalnotes/internal/auth/domain"
	obscontext "github.com/connorodea/aidentalnotes/internal/observability/context"
)

const (
	contextUserIDKey = "user_id"
	contextEmailKey  = "user_email"
)

// AuthRequired authenticates requests with a bearer session token. The plan
// claim is never trusted for quota decisions; handlers read the entitlement
// store instead.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.tokenMgr.Verify(header)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, claims.UserID)
		c.Set(contextEmailKey, claims.Email)

		ctx := obscontext.WithUserID(c.Request.Context(), claims.UserID)
		ctx = auditcontext.WithRequestID(ctx, obscontext.RequestIDFromGin(c))
		ctx = auditcontext.WithActor(ctx, "user", claims.UserID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OperatorRequired guards operator-only routes. It runs after AuthRequired
// and checks the operator flag on the stored user record rather than a token
// claim, so revoking the flag takes effect without waiting for token expiry.
func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var user authdomain.User
		err := s.db.WithContext(c.Request.Context()).
			Where("user_id = ?", userID).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}
		if !user.IsOperator {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) userIDFromSession(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(contextUserIDKey))
	return userID, userID != ""
}
