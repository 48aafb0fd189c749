package server

import (
	"context"
	"net/http"
	"time"

	"blog/internal/models"
)

type ctxKey int

const userKey ctxKey = 0

// currentUser returns the identity loaded for r, or nil when anonymous.
func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

// loadIdentity resolves the session cookie once per request.
func (s *Server) loadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.sessions.Current(r.Context(), r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if user != nil {
			r = r.WithContext(context.WithValue(r.Context(), userKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin is the authorization gate for post and comment management:
// the request must carry an authenticated identity with the admin role.
// It is evaluated on every call.
func (s *Server) requireAdmin(next func(http.ResponseWriter, *http.Request, *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if !user.IsAdmin() {
			s.log.Warn("forbidden", "path", r.URL.Path, "authenticated", user != nil)
			s.renderError(w, r, http.StatusForbidden, "You do not have permission to access this page.")
			return
		}
		next(w, r, user)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
