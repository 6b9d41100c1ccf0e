package adapthttp

import (
	"net/http"

	"darim/internal/app"
	"darim/internal/domain"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicKey string `json:"user_public_key"`
		TokenKey  string `json:"token_key"`
		TokenPin  string `json:"token_pin"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, int64(0), err)
		return
	}
	id, err := s.users.Create(r.Context(), app.CreateUserArgs{
		PublicKey: req.PublicKey,
		TokenKey:  req.TokenKey,
		TokenPin:  req.TokenPin,
	})
	render(s, w, r, http.StatusCreated, id, err)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	var req struct {
		Name      *string `json:"name"`
		Password  *string `json:"password"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.users.Update(r.Context(), sessionFrom(r.Context()), id, app.UpdateUserArgs{
		Name:      req.Name,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
	})
	render(s, w, r, http.StatusOK, ok, err)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.users.Delete(r.Context(), sessionFrom(r.Context()), id)
	if err == nil {
		clearSessionCookie(w, r)
	}
	render(s, w, r, http.StatusOK, ok, err)
}

func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render[*domain.AvatarUpload](s, w, r, 0, nil, err)
		return
	}
	up, err := s.users.AvatarUploadURL(r.Context(), sessionFrom(r.Context()), id)
	render(s, w, r, http.StatusOK, up, err)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email             string `json:"email"`
		TokenID           string `json:"token_id"`
		TemporaryPassword string `json:"temporary_password"`
		NewPassword       string `json:"new_password"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.users.ResetPassword(r.Context(), app.ResetPasswordArgs{
		Email:             req.Email,
		TokenID:           req.TokenID,
		TemporaryPassword: req.TemporaryPassword,
		NewPassword:       req.NewPassword,
	})
	render(s, w, r, http.StatusOK, ok, err)
}
