package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/middleware"
	"github.com/gorilla/mux"
)

type updateMeRequest struct {
	Name            *string `json:"name"`
	PhotoURL        *string `json:"photoUrl"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	profile, err := s.engine.CurrentIdentity(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", envelope{"user": profile})
}

// updateMe applies any combination of name, photo and password changes.
func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req updateMeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.engine.UpdateSelf(r.Context(), id.UserID, shopauth.SelfUpdate{
		Name:            req.Name,
		PhotoURL:        req.PhotoURL,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated", envelope{"user": profile})
}

func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	if err := s.engine.DeleteSelf(r.Context(), id.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, "Account deleted", nil)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	users, err := s.engine.ListAccounts(r.Context(), shopauth.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", envelope{"users": users})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	actor := s.actorID(r)

	var req adminCreateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.engine.AdminCreateAccount(r.Context(), actor, shopauth.AdminAccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     shopauth.Role(req.Role),
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "User created", envelope{"user": profile})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", envelope{"user": profile})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	actor := s.actorID(r)

	var req adminUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	update := shopauth.AdminAccountUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Verified: req.Verified,
		PhotoURL: req.PhotoURL,
	}
	if req.Role != nil {
		role := shopauth.Role(*req.Role)
		update.Role = &role
	}

	profile, err := s.engine.AdminUpdateAccount(r.Context(), actor, mux.Vars(r)["id"], update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "User updated", envelope{"user": profile})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAccount(r.Context(), s.actorID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", envelope{"stats": stats})
}

// loginAttempts reports the failed sign-in counter of one account for support staff.
func (s *Server) loginAttempts(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.engine.LoginAttempts(r.Context(), profile.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", envelope{"email": profile.Email, "attempts": n})
}

func (s *Server) actorID(r *http.Request) string {
	if account, ok := middleware.AccountFromContext(r.Context()); ok {
		return account.ID
	}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok && id != nil {
		return id.UserID
	}
	return ""
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shopauth.ErrValidation, key)
	}
	return v, nil
}
