package adapthttp

import (
	"context"
	"net"
	"net/http"
	"time"

	"darim/internal/app"
)

type contextKey string

const sessionContextKey contextKey = "session"

const sessionCookie = "session"

// withSession resolves the session cookie and stores the result in the
// request context. Requests without a valid session continue anonymously;
// the services decide whether that is allowed.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.sessions.Resolve(r.Context(), cookie.Value, clientInfo(r))
		if err != nil {
			render[any](s, w, r, 0, nil, err)
			return
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the resolved session, or nil for anonymous requests.
func sessionFrom(ctx context.Context) *app.UserSession {
	session, _ := ctx.Value(sessionContextKey).(*app.UserSession)
	return session
}

func clientInfo(r *http.Request) app.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return app.ClientInfo{UserAgent: r.UserAgent(), IP: ip}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
