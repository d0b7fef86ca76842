package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/herdwatch/herdwatch/pkg/httpx"
)

// Error codes carried in the "error" field of every error body.
const (
	ErrorCodeValidationFailed   = "validation_failed"
	ErrorCodeDuplicateAccount   = "duplicate_account"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeMissingCredential  = "missing_credential"
	ErrorCodeMissingToken       = "missing_token"
	ErrorCodeTokenExpired       = "token_expired"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeAccountNotFound    = "account_not_found"
	ErrorCodeUnauthenticated    = "unauthenticated"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeUserNotFound       = "user_not_found"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the error body of the HerdWatch API. The server writes it and
// the client returns it, so callers can compare Code on both sides.
type APIError struct {
	StatusCode  int               `json:"-"`
	Code        string            `json:"error"`
	Description string            `json:"error_description"`
	Details     map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so errors.Is works against the predefined
// values even after a round trip through the client.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// WithDetails returns a copy of e carrying per-field messages.
func (e *APIError) WithDetails(details map[string]string) *APIError {
	c := *e
	c.Details = details
	return &c
}

var (
	ErrValidationFailed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidationFailed,
		Description: "validation failed",
	}

	ErrDuplicateAccount = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeDuplicateAccount,
		Description: "user with this email already exists",
	}

	// ErrInvalidCredentials is deliberately the same for an unknown email
	// and a wrong password.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}

	ErrMissingCredential = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMissingCredential,
		Description: "access token required",
	}

	ErrMissingToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMissingToken,
		Description: "no refresh token provided",
	}

	ErrTokenExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTokenExpired,
		Description: "access token expired",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "invalid token",
	}

	ErrAccountNotFound = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeAccountNotFound,
		Description: "user not found",
	}

	ErrUnauthenticated = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthenticated,
		Description: "authentication required",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "insufficient permissions",
	}

	ErrUserNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUserNotFound,
		Description: "user not found",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrMethodNotAllowed = &APIError{
		StatusCode:  http.StatusMethodNotAllowed,
		Code:        ErrorCodeValidationFailed,
		Description: "method not allowed",
	}

	ErrInvalidBody = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidationFailed,
		Description: "request body must be valid JSON",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
