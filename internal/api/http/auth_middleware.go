package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"realty-backend/internal/config"
	"realty-backend/internal/logger"
	"realty-backend/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "user-claims"

// AuthMiddleware authenticates requests according to the security level of the matched route
type AuthMiddleware struct {
	tokenManager security.TokenManager
	auth         config.AuthConfig
}

func NewAuthMiddleware(tm security.TokenManager, auth config.AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, auth: auth}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routeName := ""
		if route := mux.CurrentRoute(r); route != nil {
			routeName = route.GetName()
		}

		token := security.BearerToken(r.Header.Get("Authorization"))

		switch config.GetSecurityLevel(routeName) {
		case config.SecurityPublic:
			next.ServeHTTP(w, r)
			return

		case config.SecurityCron:
			if !security.MatchesSecret(token, m.auth.ServiceRoleKey, m.auth.CronSecret) {
				logger.Warn("Rejected cron request", "route", routeName)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization token is not provided")
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			if errors.Is(err, security.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if claims.Type != security.TokenTypeAccess {
			writeError(w, http.StatusForbidden, security.ErrWrongTokenType.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the authenticated user claims, if any
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*security.UserClaims)
	return claims, ok
}

// canAccessOrganization reports whether the caller may act on the organization.
// Tokens without an organization claim are platform-wide.
func canAccessOrganization(ctx context.Context, orgID uuid.UUID) bool {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	scoped := claims.Organization()
	return scoped == uuid.Nil || scoped == orgID
}
