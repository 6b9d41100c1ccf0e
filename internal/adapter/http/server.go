package adapthttp

import (
	"net/http"

	"darim/internal/app"
	"darim/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds the single sign-on wiring. SSO routes answer 404 unless
// Enabled is set.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Services are the application services the adapter drives.
type Services struct {
	Auth     *app.AuthService
	Sessions *app.SessionManager
	Users    *app.UserService
	Posts    *app.PostService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth       *app.AuthService
	sessions   *app.SessionManager
	users      *app.UserService
	posts      *app.PostService
	oidcConfig OIDCConfig
	log        logging.Logger
	version    string
}

// New creates a Server wired to the given application services.
func New(svc Services, log logging.Logger, version string) *Server {
	return &Server{
		auth:     svc.Auth,
		sessions: svc.Sessions,
		users:    svc.Users,
		posts:    svc.Posts,
		log:      log,
		version:  version,
	}
}

// WithOIDC enables the SSO routes.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", s.handleHealth)

	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("POST /auth/signup-token", s.handleSignUpToken)
	api.HandleFunc("POST /auth/password-token", s.handlePasswordToken)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	api.HandleFunc("POST /users", s.handleCreateUser)
	api.HandleFunc("PATCH /users/{id}", s.handleUpdateUser)
	api.HandleFunc("DELETE /users/{id}", s.handleDeleteUser)
	api.HandleFunc("POST /users/{id}/avatar", s.handleAvatarUpload)
	api.HandleFunc("POST /users/password", s.handleResetPassword)

	api.HandleFunc("GET /posts", s.handleListPosts)
	api.HandleFunc("GET /posts/{id}", s.handleGetPost)
	api.HandleFunc("POST /posts", s.handleCreatePost)
	api.HandleFunc("PATCH /posts/{id}", s.handleUpdatePost)
	api.HandleFunc("DELETE /posts/{id}", s.handleDeletePost)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", s.withSession(api)))

	return withNoCache(s.loggingMiddleware(root))
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render(s, w, r, http.StatusOK, healthResponse{Status: "ok", Version: s.version}, nil)
}
