package http

import (
	"errors"
	"net/http"

	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/herdwatch/herdwatch/pkg/httpx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

var errorMap = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrDuplicateAccount, authsdk.ErrDuplicateAccount},
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrMissingCredential, authsdk.ErrMissingCredential},
	{service.ErrMissingToken, authsdk.ErrMissingToken},
	{service.ErrTokenExpired, authsdk.ErrTokenExpired},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrAccountNotFound, authsdk.ErrAccountNotFound},
	{service.ErrUnauthenticated, authsdk.ErrUnauthenticated},
	{service.ErrForbidden, authsdk.ErrForbidden},
	{service.ErrUserNotFound, authsdk.ErrUserNotFound},
}

// writeError maps a service error onto the API error taxonomy. Anything not
// in the taxonomy is logged and reported as a bare server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		authsdk.ErrValidationFailed.WithDetails(verr.Fields).WriteError(w)
		return
	}
	if errors.Is(err, service.ErrValidation) {
		authsdk.ErrValidationFailed.WriteError(w)
		return
	}

	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			if m.api.StatusCode == http.StatusUnauthorized {
				httpx.SetBearerChallenge(w, m.api.Code, m.api.Description)
			}
			m.api.WriteError(w)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	authsdk.ErrServerError.WriteError(w)
}
