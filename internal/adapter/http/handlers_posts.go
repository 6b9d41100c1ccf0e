package adapthttp

import (
	"net/http"

	"darim/internal/app"
	"darim/internal/domain"
)

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.List(r.Context(), sessionFrom(r.Context()))
	render(s, w, r, http.StatusOK, posts, err)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render[*domain.Post](s, w, r, 0, nil, err)
		return
	}
	post, err := s.posts.Get(r.Context(), sessionFrom(r.Context()), id)
	render(s, w, r, http.StatusOK, post, err)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Date    jsonDate `json:"date"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, int64(0), err)
		return
	}
	id, err := s.posts.Create(r.Context(), sessionFrom(r.Context()), app.CreatePostArgs{
		Title:   req.Title,
		Content: req.Content,
		Date:    req.Date.Time,
	})
	render(s, w, r, http.StatusCreated, id, err)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	var req struct {
		Title   *string   `json:"title"`
		Content *string   `json:"content"`
		Date    *jsonDate `json:"date"`
	}
	if err := parseJSON(r, &req); err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.posts.Update(r.Context(), sessionFrom(r.Context()), id, app.UpdatePostArgs{
		Title:   req.Title,
		Content: req.Content,
		Date:    req.Date.ptr(),
	})
	render(s, w, r, http.StatusOK, ok, err)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		render(s, w, r, 0, false, err)
		return
	}
	ok, err := s.posts.Delete(r.Context(), sessionFrom(r.Context()), id)
	render(s, w, r, http.StatusOK, ok, err)
}
