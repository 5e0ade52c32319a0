package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/middleware"
)

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Signup(r.Context(), shopauth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Signup successful. OTP sent to your email.", envelope{
		"email":     res.Email,
		"expiresAt": res.ExpiresAt,
	})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.engine.VerifySignupOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, session)
	writeSuccess(w, http.StatusOK, "OTP verified successfully. You are now logged in.", sessionPayload(session))
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.ResendSignupOTP(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "A new OTP has been sent to your email.", envelope{
		"email":     res.Email,
		"expiresAt": res.ExpiresAt,
	})
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.engine.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, session)
	writeSuccess(w, http.StatusOK, "Logged in successfully", sessionPayload(session))
}

func (s *Server) signout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, "logged out successfully", nil)
}

func (s *Server) sendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.SendVerificationCode(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Verification code sent successfully", nil)
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ConfirmVerificationCode(r.Context(), req.Email, req.code()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Your verification is done!", nil)
}

func (s *Server) forgotPasswordCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Forgot password code sent successfully", nil)
}

func (s *Server) forgotPasswordValidation(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Email, req.code(), req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Your password reset!", nil)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ChangePassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password updated", nil)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.engine.UpdateProfile(r.Context(), id.UserID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated", envelope{"user": profile})
}

func (s *Server) updatePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req updatePhotoRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.engine.UpdatePhoto(r.Context(), id.UserID, req.PhotoURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Photo updated successfully", envelope{"photoUrl": profile.PhotoURL})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
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

// identity returns the guard's identity or writes 401.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (*shopauth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id == nil {
		s.writeError(w, r, fmt.Errorf("%w: no identity on request", shopauth.ErrUnauthorized))
		return nil, false
	}
	return id, true
}

func sessionPayload(session *shopauth.SessionResult) envelope {
	return envelope{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.Profile,
	}
}
