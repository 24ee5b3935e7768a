// Package web exposes the live job registry to UI consumers over a small
// read-only JSON API, plus the user-initiated cancel endpoint.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"golang.org/x/crypto/bcrypt"

	"github.com/syncmon/syncmon/app/tracker"
)

// Registry is the tracker surface the server reads and cancels through
type Registry interface {
	Snapshot() map[string]tracker.JobRecord
	Get(jobID string) (tracker.JobRecord, bool)
	Stop(jobID string)
}

// Server represents the status web server
type Server struct {
	registry     Registry
	version      string
	passwordHash string  // bcrypt hash for basic auth, empty disables auth
	rateLimit    float64 // requests per second per remote address
}

// Params configures the server
type Params struct {
	Registry     Registry
	Version      string
	PasswordHash string
	RateLimit    float64
}

// New creates the status server
func New(p Params) *Server {
	if p.RateLimit <= 0 {
		p.RateLimit = 10
	}
	return &Server{registry: p.Registry, version: p.Version, passwordHash: p.PasswordHash, rateLimit: p.RateLimit}
}

// Run starts the server and blocks until the context is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown status server: %v", err)
		}
	}()

	log.Printf("[INFO] starting status server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	limiter := tollbooth.NewLimiter(s.rateLimit, nil)

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(100),
		rest.AppInfo("syncmon", "syncmon", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(16*1024), // requests carry no meaningful body
		tollbooth.HTTPMiddleware(limiter),
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for status API")
		router.Use(s.authMiddleware)
	}

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /jobs", s.handleJobs)
		api.HandleFunc("GET /jobs/{id}", s.handleJob)
		api.HandleFunc("POST /jobs/{id}/stop", s.handleStopJob)
	})

	return router
}

// authMiddleware verifies basic auth credentials against the bcrypt hash.
// User name is not checked, only the password matters.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="syncmon"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
