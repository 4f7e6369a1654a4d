package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/convert"
	"github.com/fortivault/fortivault/internal/errs"
)

type usersResponse struct {
	Users []convert.UserSummaryView `json:"users"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.admin.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: convert.ToUserSummaryViews(list)})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToStatsView(st))
}

func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.admin.Promote(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: convert.ToUserView(u)})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.admin.DeleteUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user deleted"})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", errs.ErrValidation, name)
	}
	return id, nil
}
