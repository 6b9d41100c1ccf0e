package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"darim/internal/app"
	"darim/internal/domain"
)

// envelope is the body of every API response. Exactly one of Data and
// Error is non-null.
type envelope[T any] struct {
	Data  *T      `json:"data"`
	Error *string `json:"error"`
}

// render writes data with status, or the error's kind when err is set.
func render[T any](s *Server, w http.ResponseWriter, r *http.Request, status int, data T, err error) {
	if err != nil {
		code, msg := s.errorStatus(r, err)
		writeJSON(w, code, envelope[T]{Error: &msg})
		return
	}
	writeJSON(w, status, envelope[T]{Data: &data})
}

var errorKinds = []struct {
	err    error
	status int
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrExpired, http.StatusGone},
	{domain.ErrInvalidToken, http.StatusBadRequest},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrInvalidArgument, http.StatusBadRequest},
}

// errorStatus maps an error to its status code and public message. Causes
// of internal errors are logged, never sent.
func (s *Server) errorStatus(r *http.Request, err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.err.Error()
		}
	}
	s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	return http.StatusInternalServerError, domain.ErrInternal.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseJSON decodes the body into dst. Unknown fields are ignored, so a
// client cannot smuggle in fields such as an owner id.
func parseJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// pathID parses the {id} wildcard. A malformed id names no resource.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// jsonDate accepts either a calendar date ("2006-01-02") or an RFC 3339
// timestamp.
type jsonDate struct {
	time.Time
}

func (d *jsonDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

func (d *jsonDate) ptr() *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, h app.SessionHandle) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    h.Token,
		Path:     "/",
		Expires:  h.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		MaxAge:   -1,
	})
}
