// Package httpapi exposes the account service over HTTP. Signup and signin
// are public; every other route requires a bearer credential. The transport
// never carries engine state: it extracts parameters, runs the handler, and
// wraps the result or the signaled error code into the response envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/accounts"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
)

type Server struct {
	address  string
	logger   logging.Logger
	accounts *accounts.Service
	auth     *auth.Service
}

func NewServer(address string, logger logging.Logger, as *accounts.Service, authService *auth.Service) *Server {
	return &Server{
		address:  address,
		logger:   logger.With("module", "http_server"),
		accounts: as,
		auth:     authService,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.clientMiddleware())

	r.POST("/signup", s.signup)
	r.POST("/signin", s.signin)

	authed := r.Group("/", s.authMiddleware())
	authed.GET("/profile", s.getProfile)
	authed.PUT("/profile", s.setProfile)
	authed.DELETE("/profile", s.deleteUser)
	authed.POST("/signout", s.signout)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
