package apicommon

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vocdoni/saas-billing/errors"
	"go.vocdoni.io/dvote/log"
)

// UserFromContext retrieves the user from the context provided, expected to be
// the context of a request handled by the authenticator middleware.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(UserMetadataKey).(User)
	if ok && user.ID != "" {
		return &user, true
	}
	return nil, false
}

// HTTPWriteJSON helper function allows to write a JSON response. Data that
// cannot be marshaled is answered with ErrMarshalingServerJSONFailed.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errors.ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// HTTPWriteOK helper function allows to write an OK response.
func HTTPWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}
