package middlewares

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"agroguard/internal/models"
	"agroguard/internal/utils"
)

// Authenticator checks bearer tokens and stores the user id and role in the
// request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			utils.SendJSONError(w, "No token, authorization denied", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(a.secret, token)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
			utils.SendJSONError(w, "Token is not valid", http.StatusUnauthorized)
			return
		}

		ctx := utils.WithUser(r.Context(), claims.UserID, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claims, err := utils.ParseJWT(a.secret, token); err == nil {
				r = r.WithContext(utils.WithUser(r.Context(), claims.UserID, claims.Role))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Admin requires a valid token carrying the admin role.
func (a *Authenticator) Admin(next http.Handler) http.Handler {
	return a.Required(AdminOnly(next))
}

// AdminOnly must run after Required.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if utils.RoleFromContext(r.Context()) != string(models.RoleAdmin) {
			utils.SendJSONError(w, "Access denied. Admin only.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
