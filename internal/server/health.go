package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Health(c *gin.Context) {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
