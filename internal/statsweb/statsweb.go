// Package statsweb exposes a small HTTP surface for operational visibility:
// a Prometheus /metrics endpoint gated behind HTTP Basic credentials checked
// against a bcrypt hash from config, and an unauthenticated /healthz check.
package statsweb

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

// Server serves /metrics behind Basic Auth and /healthz without it.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server listening on addr, authorizing requests whose Basic
// Auth credentials match username and the given bcrypt hash.
func New(addr, username, passwordHash string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", basicAuth(username, passwordHash, logger, promhttp.Handler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
	}
}

// ListenAndServe blocks serving the stats surface until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func basicAuth(username, passwordHash string, logger *slog.Logger, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != username || bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
			logger.Debug("statsweb: rejected unauthenticated request", "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="corvid-dhcpd stats"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
