package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
)

type promoteUserRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type setSuperUserRequest struct {
	UserID      string `json:"userId" binding:"required"`
	IsSuperUser *bool  `json:"isSuperUser" binding:"required"`
}

func (s *Server) ListUsers(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}
	page, err := parseOptionalInt(c.Query("page"))
	if err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "invalid page"))
		return
	}

	resp, err := s.profileSvc.ListProfiles(c.Request.Context(), actor, profiledomain.ListProfilesRequest{
		Role:     strings.TrimSpace(c.Query("role")),
		Search:   strings.TrimSpace(c.Query("search")),
		PageSize: pageSize,
		Page:     page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PromoteUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req promoteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	userID, err := parseOptionalSnowflakeID(req.UserID)
	if err != nil || userID == nil {
		AbortWithError(c, profiledomain.ErrInvalidUserID)
		return
	}

	profile, err := s.profileSvc.PromoteUser(c.Request.Context(), actor, *userID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) ListSuperUsers(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	users, err := s.profileSvc.ListSuperUsers(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) SetSuperUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req setSuperUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	userID, err := parseOptionalSnowflakeID(req.UserID)
	if err != nil || userID == nil {
		AbortWithError(c, profiledomain.ErrInvalidUserID)
		return
	}

	profile, err := s.profileSvc.SetSuperUser(c.Request.Context(), actor, *userID, *req.IsSuperUser)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}
