package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
)

// ListCommissions serves both the admin listing and the employee's own view;
// the service scopes the result by the actor.
func (s *Server) ListCommissions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req commissiondomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.commissionSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkCommissionPaid(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", commissiondomain.ErrInvalidID)
	if !ok {
		return
	}

	commission, err := s.commissionSvc.MarkPaid(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) GetOwnCommissionSummary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	summary, err := s.commissionSvc.Summary(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetEmployeeCommissionSummary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	employeeID, ok := parseIDParam(c, "id", commissiondomain.ErrInvalidEmployee)
	if !ok {
		return
	}

	summary, err := s.commissionSvc.Summary(c.Request.Context(), actor, employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ListCoupons(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	coupons, err := s.commissionSvc.ListCoupons(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": coupons})
}
