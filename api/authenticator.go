package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/vocdoni/saas-billing/api/apicommon"
	"github.com/vocdoni/saas-billing/errors"
)

// JWT claims carried by the tokens of the callers.
const (
	userIDClaim = "userId"
	emailClaim  = "email"
)

// authenticator checks the JWT token verified by jwtauth.Verifier and
// stores the caller, built from its claims, in the request context.
func (*API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim(userIDClaim)) != nil {
			errors.ErrUnauthorized.Withf("userId claim not found in JWT token").Write(w)
			return
		}
		userID, ok := claims[userIDClaim].(string)
		if !ok || userID == "" {
			errors.ErrUnauthorized.Withf("invalid userId claim").Write(w)
			return
		}
		user := apicommon.User{ID: userID}
		if email, ok := claims[emailClaim].(string); ok {
			user.Email = email
		}
		ctx := context.WithValue(r.Context(), apicommon.UserMetadataKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
