package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fortivault/fortivault/internal/convert"
	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/service"
)

type addPasswordRequest struct {
	Website    string `json:"website"`
	WebsiteURL string `json:"websiteUrl"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// AddPasswordResponse is the stored record with what the breach gate reported about it.
type AddPasswordResponse struct {
	Record    convert.CredentialView `json:"record"`
	Screening convert.ScreeningView  `json:"screening"`
}

type passwordsResponse struct {
	Passwords []convert.CredentialView `json:"passwords"`
}

type deletePasswordResponse struct {
	Message   string                   `json:"message"`
	Passwords []convert.CredentialView `json:"passwords"`
}

type checkURLRequest struct {
	URL string `json:"url"`
}

type checkPasswordRequest struct {
	Password string `json:"password"`
}

// addPassword screens the credential first and stores it only if the gate did not fail
// under the closed policy.
func (s *Server) addPassword(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := service.AddInput{
		Website:    req.Website,
		WebsiteURL: req.WebsiteURL,
		Username:   req.Username,
		Password:   req.Password,
	}.Normalize()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var screening convert.ScreeningView
	pw, err := s.gate.CheckPassword(r.Context(), in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	screening.Password = convert.ToPasswordReportView(pw)
	if in.WebsiteURL != "" {
		u, err := s.gate.CheckURL(r.Context(), in.WebsiteURL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		v := convert.ToURLReportView(u)
		screening.URL = &v
	}

	cred, err := s.vault.Add(r.Context(), id.UserID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddPasswordResponse{
		Record:    convert.ToCredentialView(cred),
		Screening: screening,
	})
}

func (s *Server) getPasswords(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.vault.List(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passwordsResponse{Passwords: convert.ToCredentialViews(list)})
}

func (s *Server) deletePassword(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var rest []model.Credential
	// An id that is not a UUID names no record, so the vault stays as is.
	if recordID, perr := pathUUID(r, "id"); perr != nil {
		rest, err = s.vault.List(r.Context(), id.UserID)
	} else {
		rest, err = s.vault.Delete(r.Context(), id.UserID, recordID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletePasswordResponse{
		Message:   "credential deleted",
		Passwords: convert.ToCredentialViews(rest),
	})
}

func (s *Server) checkURL(w http.ResponseWriter, r *http.Request) {
	var req checkURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, fmt.Errorf("%w: url is required", errs.ErrValidation))
		return
	}
	rep, err := s.gate.CheckURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToURLReportView(rep))
}

func (s *Server) checkPassword(w http.ResponseWriter, r *http.Request) {
	var req checkPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Password == "" {
		s.writeError(w, r, fmt.Errorf("%w: password is required", errs.ErrValidation))
		return
	}
	rep, err := s.gate.CheckPassword(r.Context(), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToPasswordReportView(rep))
}
