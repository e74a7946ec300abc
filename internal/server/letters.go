package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
)

func (s *Server) GenerateLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req letterdomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	letter, err := s.letterSvc.Generate(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": letter})
}

func (s *Server) CreateDraftLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req letterdomain.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	letter, err := s.letterSvc.CreateDraft(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": letter})
}

func (s *Server) ListLetters(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req letterdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.letterSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	letter, err := s.letterSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) SubmitLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	letter, err := s.letterSvc.Submit(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) CompleteLetter(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	letter, err := s.letterSvc.Complete(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letter})
}

func (s *Server) SendLetterEmail(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	var req letterdomain.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	result, err := s.letterSvc.SendEmail(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetLetterAudit(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	trail, err := s.letterSvc.AuditTrail(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trail})
}

func (s *Server) DownloadLetterPDF(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", letterdomain.ErrInvalidID)
	if !ok {
		return
	}

	doc, err := s.letterSvc.RenderPDF(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}
