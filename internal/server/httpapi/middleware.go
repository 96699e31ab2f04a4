package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
)

const (
	ctxKeyClient = "client"
	ctxKeyUser   = "user"
)

// clientMiddleware resolves the client application making the request from
// the Client header. Unknown or missing values fall back to "other".
func (s *Server) clientMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := strings.ToLower(strings.TrimSpace(c.GetHeader(common.ClientHeaderName)))
		if !common.KnownClient(client) {
			client = common.ClientOther
		}
		c.Set(ctxKeyClient, client)
		c.Next()
	}
}

// authMiddleware requires a valid bearer credential in the Authorization
// header and stores the resolved user on the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := strings.TrimSpace(c.GetHeader(common.AuthorizationHeaderName))

		user, err := s.auth.GetUser(c.Request.Context(), credential, clientOf(c))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxKeyUser, user)
		c.Next()
	}
}

func clientOf(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyClient); ok {
		if client, ok := v.(string); ok {
			return client
		}
	}
	return common.ClientOther
}

func userOf(c *gin.Context) *auth.User {
	if v, ok := c.Get(ctxKeyUser); ok {
		if user, ok := v.(*auth.User); ok {
			return user
		}
	}
	return nil
}
