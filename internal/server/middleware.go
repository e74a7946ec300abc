package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lexdraft/internal/identity"
	obscontext "github.com/smallbiznis/lexdraft/internal/observability/context"
)

const contextActorKey = "actor"

// AuthRequired resolves the session token into the caller identity.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, _, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), string(actor.Role), actor.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired admits only admins signed in through the admin portal.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !actor.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RateLimit applies policy keyed by the caller, or by client ip before login.
func (s *Server) RateLimit(policy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if actor, ok := actorFromContext(c); ok {
			key = actor.UserID.String()
		}

		res := s.limiter.Allow(c.Request.Context(), policy, key)
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			if seconds := int(res.RetryAfter.Seconds()); seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (identity.Actor, bool) {
	raw, ok := c.Get(contextActorKey)
	if !ok {
		return identity.Actor{}, false
	}
	actor, ok := raw.(identity.Actor)
	return actor, ok && actor.Valid()
}

// mustActor is used behind AuthRequired; it aborts when no actor is present.
func mustActor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
	}
	return actor, ok
}

func requestOrigin(c *gin.Context) string {
	return strings.TrimRight(strings.TrimSpace(c.GetHeader("Origin")), "/")
}
