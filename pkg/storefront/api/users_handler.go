package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func (s *Server) userRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.listUsers)
	r.Put("/{identity}/role", s.changeUserRole)
	return r
}

// ChangeRoleRequest is the body of PUT /users/{identity}/role.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// MeResponse describes the caller.
type MeResponse struct {
	Identity storefront.Identity `json:"identity"`
	User     *storefront.User    `json:"user"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	users, err := s.service.ListUsers(r.Context(), id)
	if err != nil {
		s.logFailure(r, "list users failed", err)
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []*storefront.User{}
	}
	render.JSON(w, r, users)
}

func (s *Server) changeUserRole(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req ChangeRoleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	role, ok := storefront.ParseRole(req.Role)
	if !ok {
		badRequest(w, r, "role", "must be one of user, employee, admin")
		return
	}

	user, err := s.service.ChangeUserRole(r.Context(), id, chi.URLParam(r, "identity"), role)
	if err != nil {
		s.logFailure(r, "change role failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

// handleMe registers the caller in the directory on first sight.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	user, err := s.service.EnsureUser(r.Context(), id)
	if err != nil {
		s.logFailure(r, "ensure user failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, MeResponse{Identity: id, User: user})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	if err := s.service.SignOut(r.Context(), id); err != nil {
		s.logFailure(r, "sign out failed", err)
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
