package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
)

type listSecurityLogsQuery struct {
	pagination.Pagination
	UserID string `form:"user_id"`
	Action string `form:"action"`
}

// ListSecurityLogs is mounted behind AdminRequired.
func (s *Server) ListSecurityLogs(c *gin.Context) {
	var query listSecurityLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.auditSvc.ListSecurityLogs(c.Request.Context(), auditdomain.ListSecurityLogsRequest{
		Pagination: query.Pagination,
		UserID:     strings.TrimSpace(query.UserID),
		Action:     strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
