// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"darim/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, false, err)
		return
	}

	h, err := s.auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err == nil {
		setSessionCookie(w, r, h)
	}
	render(s, w, r, http.StatusOK, err == nil, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var err error
	if cookie, cerr := r.Cookie(sessionCookie); cerr == nil {
		err = s.auth.Logout(r.Context(), cookie.Value)
	}
	clearSessionCookie(w, r)
	render(s, w, r, http.StatusOK, err == nil, err)
}

func (s *Server) handleSignUpToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, "", err)
		return
	}
	key, err := s.users.RequestSignUp(r.Context(), app.SignUpArgs{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	render(s, w, r, http.StatusCreated, key, err)
}

func (s *Server) handlePasswordToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.users.RequestPasswordReset(r.Context(), req.Email)
	render(s, w, r, http.StatusOK, ok, err)
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.log.Warn(r.Context(), "sso code exchange failed", "error", err)
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusInternalServerError)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.log.Warn(r.Context(), "sso id token rejected", "error", err)
		http.Error(w, "failed to verify token", http.StatusInternalServerError)
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		http.Error(w, "email not verified", http.StatusUnauthorized)
		return
	}

	h, err := s.auth.LoginWithEmail(r.Context(), claims.Email, clientInfo(r))
	if err != nil {
		code, msg := s.errorStatus(r, err)
		http.Error(w, msg, code)
		return
	}
	setSessionCookie(w, r, h)
	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
