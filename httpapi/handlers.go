package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/aimlabs/eduauth"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

// peekField reads one string field from the JSON body without consuming
// it, so a quota key can be derived before the handler decodes.
func peekField(r *http.Request, field string) string {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var m map[string]any
	if json.Unmarshal(body, &m) != nil {
		return ""
	}
	s, _ := m[field].(string)
	return s
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone,omitempty"`
	Bio           string `json:"bio,omitempty"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

func toSessionResponse(s *eduauth.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         toUserResponse(&s.User),
	}
}

func toUserResponse(u *eduauth.UserView) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Bio:           u.Bio,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Bio       string `json:"bio"`
		Role      string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}

	receipt, err := s.engine.SubmitRegistration(r.Context(), eduauth.RegistrationInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Bio:       req.Bio,
		Role:      req.Role,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusAccepted, map[string]any{
		"registration_token": receipt.Token,
		"otp_expires_at":     receipt.OTPExpiresAt,
	})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegistrationToken string `json:"registration_token"`
		Code              string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}

	session, err := s.engine.VerifyRegistration(r.Context(), req.RegistrationToken, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegistrationToken string `json:"registration_token"`
	}
	if !decode(w, r, &req) {
		return
	}

	receipt, err := s.engine.ResendOTP(r.Context(), req.RegistrationToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"registration_token": receipt.Token,
		"otp_expires_at":     receipt.OTPExpiresAt,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	session, err := s.engine.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}

	session, err := s.engine.GoogleLogin(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decode(w, r, &req) {
		return
	}

	session, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.engine.Logout(r.Context(), bearerToken(r), req.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.CurrentUser(r.Context(), bearerToken(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toUserResponse(view))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.engine.ChangePassword(r.Context(), bearerToken(r), req.OldPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (s *Server) handleSendResetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	// Identical response whether or not the account exists.
	respond(w, http.StatusOK, map[string]string{"status": "reset mail sent if the account exists"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &req) {
		return
	}

	// Reset mails link with the token as a query parameter; a body field
	// works too.
	resetToken := r.URL.Query().Get("token")
	if resetToken == "" {
		resetToken = req.Token
	}

	if err := s.engine.ResetPassword(r.Context(), resetToken, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "password reset"})
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.engine.SetPassword(r.Context(), bearerToken(r), req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "password set"})
}
