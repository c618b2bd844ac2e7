package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fenggwsx/RoomGate/internal/auth"
)

var (
	errLoginDisabled      = errors.New("admin login disabled")
	errInvalidCredentials = errors.New("invalid credentials")
	errInvalidPayload     = errors.New("invalid payload")
	errUnauthorized       = errors.New("unauthorized")
)

func (a *App) handleToken(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTokenRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidPayload)
		return
	}

	if a.cfg.Admin.PasswordHash == "" {
		writeError(w, http.StatusForbidden, errLoginDisabled)
		return
	}
	if err := auth.ComparePassword(a.cfg.Admin.PasswordHash, req.Password); err != nil {
		a.logger.Warn("admin login failed", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	token, expiresAt, err := auth.NewToken(a.cfg.JWT, "admin", auth.RoleAdmin)
	if err != nil {
		a.logger.Error("token issue", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("token generation failed"))
		return
	}
	a.logger.Info("admin login success", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// requireAdmin rejects requests without a valid admin bearer token. With no
// password hash configured the admin API is off and every call gets 403.
func (a *App) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Admin.PasswordHash == "" {
			writeError(w, http.StatusForbidden, errLoginDisabled)
			return
		}
		if _, err := a.claimsFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *App) claimsFromRequest(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, errors.New("missing token")
	}
	claims, err := auth.ParseToken(a.cfg.JWT, token)
	if err != nil {
		return nil, err
	}
	if claims.Role != auth.RoleAdmin {
		return nil, errUnauthorized
	}
	return claims, nil
}
