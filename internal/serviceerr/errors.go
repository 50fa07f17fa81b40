// Package serviceerr defines the service-level errors exchanged between
// the session core and the HTTP boundary. Codes reuse the RFC 6749
// error literals where one exists.
package serviceerr

import "net/http"

type Code string

const (
	// RFC6749 authorization and token errors
	CodeInvalidRequest         Code = "invalid_request"
	CodeUnauthorized           Code = "unauthorized_client"
	CodeAccessDenied           Code = "access_denied"
	CodeInvalidGrant           Code = "invalid_grant"
	CodeServerError            Code = "server_error"
	CodeTemporarilyUnavailable Code = "temporarily_unavailable"

	// Custom codes
	CodeUnknown        Code = "unknown"
	CodeNotFound       Code = "not_found"
	CodeStateMismatch  Code = "state_mismatch"
	CodeStateExpired   Code = "state_expired"
	CodeProviderDenied Code = "provider_denied"
)

type Error struct {
	Err         Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// HTTPStatus maps the error code onto the status the HTTP boundary
// responds with. Unknown codes map to an internal server error.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidGrant:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeStateMismatch, CodeStateExpired:
		return http.StatusUnauthorized
	case CodeAccessDenied, CodeProviderDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	case CodeServerError, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrUnknown        = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrNotFound       = &Error{Err: CodeNotFound, Description: "not found"}
	ErrUnauthorized   = &Error{Err: CodeUnauthorized, Description: "unauthorized"}
	ErrStateMismatch  = &Error{Err: CodeStateMismatch, Description: "state parameter does not match a pending authorization"}
	ErrStateExpired   = &Error{Err: CodeStateExpired, Description: "state expired"}
	ErrProviderDenied = &Error{Err: CodeProviderDenied, Description: "provider reported an authorization error"}

	// ErrMissingCode is reported when the provider redirects back
	// without an authorization code.
	ErrMissingCode = &Error{Err: CodeUnauthorized, Description: "missing authorization code"}

	// ErrTokenExchange is reported when the code-for-token exchange
	// fails or the response carries no access token. Never retried.
	ErrTokenExchange = &Error{Err: CodeUnauthorized, Description: "token exchange failed"}
)
