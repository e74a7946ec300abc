package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
)

type meResponse struct {
	Profile *profiledomain.Profile `json:"profile"`
	Scope   identity.Scope         `json:"scope"`
	IsAdmin bool                   `json:"is_admin"`
}

func (s *Server) Signup(c *gin.Context) {
	var req authdomain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	profile, err := s.authsvc.Signup(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": profile})
}

func (s *Server) Login(c *gin.Context) {
	s.login(c, s.authsvc.Login)
}

func (s *Server) AdminLogin(c *gin.Context) {
	s.login(c, s.authsvc.AdminLogin)
}

type loginFunc func(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error)

func (s *Server) login(c *gin.Context, fn loginFunc) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.UserAgent = c.Request.UserAgent()
	req.IPAddress = c.ClientIP()

	result, err := fn(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"session": result.Session,
		"token":   result.RawToken,
	}})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	profile, err := s.profileSvc.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": meResponse{
		Profile: profile,
		Scope:   actor.Scope,
		IsAdmin: actor.IsAdmin(),
	}})
}
