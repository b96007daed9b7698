package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dias221467/Chat_Server/pkg/apperror"
	jwtutil "github.com/Dias221467/Chat_Server/pkg/jwt"
	"github.com/Dias221467/Chat_Server/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

// UserContextKey holds the *jwtutil.Claims of the authenticated caller.
const UserContextKey contextKey = "user"

// TokenCookieName is the cookie set at login.
const TokenCookieName = "token"

// AuthMiddleware rejects requests without a valid session token. The token is read
// from the Authorization header first, then from the session cookie.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				apperror.Write(w, apperror.Unauthenticated("please login to access this route"))
				return
			}

			claims, err := jwtutil.ValidateToken(token, secret)
			if err != nil {
				logger.Log.WithError(err).Warn("Rejected invalid session token")
				apperror.Write(w, apperror.Unauthenticated("invalid or expired session"))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts a bearer token, the session cookie, or the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// GetUserFromContext returns the claims stored by AuthMiddleware, or nil.
func GetUserFromContext(ctx context.Context) *jwtutil.Claims {
	claims, _ := ctx.Value(UserContextKey).(*jwtutil.Claims)
	return claims
}

// CurrentUserID resolves the authenticated caller's id.
func CurrentUserID(ctx context.Context) (primitive.ObjectID, error) {
	claims := GetUserFromContext(ctx)
	if claims == nil {
		return primitive.NilObjectID, apperror.Unauthenticated("please login to access this route")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, apperror.Unauthenticated("invalid session subject")
	}
	return id, nil
}
