package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// TestCleanup deletes accounts seeded by integration tests. Disabled in
// production.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.Environment == "production" {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	userIDs, err := s.loadUserIDsByPrefix(ctx, prefix)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.deleteUserData(ctx, userIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) loadUserIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	like := strings.TrimSpace(prefix) + "%"
	var userIDs []string
	if err := s.db.WithContext(ctx).
		Table("users").
		Select("user_id").
		Where("user_id LIKE ?", like).
		Scan(&userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (s *Server) deleteUserData(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	queries := []string{
		`DELETE FROM billing_events WHERE user_id IN ?`,
		`DELETE FROM licenses WHERE user_id IN ?`,
		`DELETE FROM users WHERE user_id IN ?`,
	}
	for _, query := range queries {
		if err := s.db.WithContext(ctx).Exec(query, userIDs).Error; err != nil {
			return err
		}
	}
	return nil
}
