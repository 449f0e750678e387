package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"PharmaStore/pkg/web"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Log      *zap.Logger
	Store    Store
	JWT      *TokenMaker
	TokenTTL time.Duration
}

func (s *Server) ttl() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return 15 * time.Minute
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req loginReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "bad json")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)

	if req.Email == "" || req.Password == "" {
		web.WriteError(w, r, http.StatusBadRequest, "email/password required")
		return
	}

	u, err := s.Store.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		// Same message for unknown email and wrong password.
		web.WriteError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := s.JWT.New(u, s.ttl())
	if err != nil {
		s.Log.Error("token issue", zap.Error(err))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	web.WriteData(w, http.StatusOK, loginResp{User: u, AccessToken: tok})
}

// HandleLogout exists for API symmetry with the storefront client. Tokens
// are stateless, so there is nothing to invalidate server-side.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	u, found, err := s.Store.GetByID(r.Context(), id.UserID)
	if err != nil {
		s.Log.Error("get user failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !found {
		web.WriteError(w, r, http.StatusUnauthorized, "user no longer exists")
		return
	}

	web.WriteData(w, http.StatusOK, u)
}
