package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
)

func (s *Server) ListReviewLetters(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req letterdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.letterSvc.ListForReview(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) StartLetterReview(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	letter, err := s.letterSvc.StartReview(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) UpdateLetterDraft(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	var req letterdomain.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	letter, err := s.letterSvc.UpdateDraft(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) ApproveLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	var req letterdomain.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	letter, err := s.letterSvc.Approve(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) RejectLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	var req letterdomain.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	letter, err := s.letterSvc.Reject(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}
