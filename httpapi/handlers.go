package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	goSecure "github.com/MrEthical07/goSecure"
	"github.com/MrEthical07/goSecure/middleware"
	"github.com/gorilla/mux"
)

type loginRequest struct {
	AccountID string `json:"accountId"`
	Password  string `json:"password"`
}

type codeRequest struct {
	Code          string `json:"code"`
	UseBackupCode bool   `json:"useBackupCode,omitempty"`
}

type disableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type enableResponse struct {
	Enabled   bool      `json:"enabled"`
	EnabledAt time.Time `json:"enabledAt"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, errBadBody)
		return false
	}
	return true
}

// caller returns the authenticated account and raw bearer set by Guard.
func caller(r *http.Request) (accountID, bearer string) {
	if res, ok := middleware.AuthResultFromContext(r.Context()); ok {
		accountID = res.AccountID
	}
	bearer, _ = middleware.BearerFromContext(r.Context())
	return accountID, bearer
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Login(r.Context(), req.AccountID, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

/*
====================================
TWO-FACTOR
====================================
*/

func (s *Server) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	accountID, _ := caller(r)
	st, err := s.svc.TwoFactorStatus(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	accountID, _ := caller(r)
	setup, err := s.svc.SetupTwoFactor(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, setup)
}

func (s *Server) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	accountID, _ := caller(r)
	at, err := s.svc.EnableTwoFactor(r.Context(), accountID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enableResponse{Enabled: true, EnabledAt: at})
}

func (s *Server) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req disableRequest
	if !s.decode(w, r, &req) {
		return
	}
	accountID, _ := caller(r)
	if err := s.svc.DisableTwoFactor(r.Context(), accountID, req.Password, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	accountID, _ := caller(r)
	ok, err := s.svc.VerifyTwoFactor(r.Context(), accountID, req.Code, req.UseBackupCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": ok})
}

func (s *Server) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}
	accountID, _ := caller(r)
	codes, err := s.svc.RegenerateBackupCodes(r.Context(), accountID, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string][]string{"backupCodes": codes})
}

/*
====================================
SESSIONS
====================================
*/

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	accountID, bearer := caller(r)
	list, err := s.svc.ListSessions(r.Context(), accountID, bearer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]goSecure.SessionSummary{"sessions": list})
}

func (s *Server) revokeSession(w http.ResponseWriter, r *http.Request) {
	accountID, _ := caller(r)
	if err := s.svc.RevokeSession(r.Context(), accountID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	accountID, bearer := caller(r)
	n, err := s.svc.RevokeAllOtherSessions(r.Context(), accountID, bearer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (s *Server) touchSession(w http.ResponseWriter, r *http.Request) {
	accountID, bearer := caller(r)
	at, err := s.svc.TouchSession(r.Context(), accountID, bearer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]time.Time{"lastActive": at})
}

/*
====================================
PASSWORD
====================================
*/

func (s *Server) passwordInfo(w http.ResponseWriter, r *http.Request) {
	accountID, _ := caller(r)
	info, err := s.svc.PasswordInfo(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	accountID, bearer := caller(r)
	res, err := s.svc.ChangePassword(r.Context(), goSecure.ChangePasswordRequest{
		AccountID:   accountID,
		Current:     req.CurrentPassword,
		Next:        req.NewPassword,
		Confirm:     req.ConfirmPassword,
		BearerToken: bearer,
	})
	if err != nil && res == nil {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		// Rotation committed; only the follow-up revocation failed.
		s.logger.WarnContext(r.Context(), "password changed but session revocation failed",
			"account_id", accountID, "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}
