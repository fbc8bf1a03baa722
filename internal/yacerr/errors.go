// Package yacerr defines the typed error hierarchy used throughout yacgo,
// grounded on the kind/code taxonomy of the original implementation's
// app/model/err.py. Every user-facing error carries an HTTP status code and
// a short title; the HTTP layer (internal/server) maps them to the
// {title, message} response shape required by §7.
package yacerr

import "fmt"

// Error is the base of every typed yacgo error.
type Error struct {
	Code    int
	Title   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(code int, title, format string, args ...any) *Error {
	return &Error{Code: code, Title: title, Message: fmt.Sprintf(format, args...)}
}

func wrap(code int, title string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Title: title, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Specs errors (500, "Error in Specification").

func NewSpecsError(format string, args ...any) *Error {
	return newf(500, "Error in Specification", format, args...)
}

func WrapSpecsError(cause error, format string, args ...any) *Error {
	return wrap(500, "Error in Specification", cause, format, args...)
}

func NewRepoSpecsError(format string, args ...any) *Error {
	return newf(500, "Error in Specification", format, args...)
}

func WrapRepoSpecsError(cause error, format string, args ...any) *Error {
	return wrap(500, "Error in Specification", cause, format, args...)
}

func NewSchemaSpecsError(format string, args ...any) *Error {
	return newf(500, "Error in Specification", format, args...)
}

func WrapSchemaSpecsError(cause error, format string, args ...any) *Error {
	return wrap(500, "Error in Specification", cause, format, args...)
}

// Plugin errors (500, "Error in Plugin").

func NewPluginError(format string, args ...any) *Error {
	return newf(500, "Error in Plugin", format, args...)
}

// Action errors.

func NewActionError(format string, args ...any) *Error {
	return newf(500, "Action could not be executed", format, args...)
}

func NewActionClientError(format string, args ...any) *Error {
	return newf(400, "Action could not be executed", format, args...)
}

// Request errors (client-facing, 4xx).

func NewRequestError(format string, args ...any) *Error {
	return newf(400, "Not Allowed", format, args...)
}

func NewRequestConflict(format string, args ...any) *Error {
	return newf(409, "Conflict", format, args...)
}

func NewRequestForbidden(format string, args ...any) *Error {
	return newf(403, "Forbidden", format, args...)
}

func NewRequestNotFound(format string, args ...any) *Error {
	return newf(404, "Not Found", format, args...)
}

// Repo errors.

func NewRepoError(format string, args ...any) *Error {
	return newf(500, "Accessing Data Repository failed", format, args...)
}

func WrapRepoError(cause error, format string, args ...any) *Error {
	return wrap(500, "Accessing Data Repository failed", cause, format, args...)
}

func NewRepoTimeoutError(format string, args ...any) *Error {
	return newf(500, "Data Repository did not answer timely", format, args...)
}

func NewRepoClientError(format string, args ...any) *Error {
	return newf(400, "Not Allowed", format, args...)
}

func NewRepoConflict(format string, args ...any) *Error {
	return newf(409, "Conflict", format, args...)
}

func NewRepoForbidden(format string, args ...any) *Error {
	return newf(403, "Forbidden", format, args...)
}

func NewRepoNotFound(format string, args ...any) *Error {
	return newf(404, "Not Found", format, args...)
}

// Other top-level kinds.

func NewServerError(format string, args ...any) *Error {
	return newf(500, "Server Error", format, args...)
}

func WrapServerError(cause error, format string, args ...any) *Error {
	return wrap(500, "Server Error", cause, format, args...)
}

func NewAuthError(format string, args ...any) *Error {
	return newf(401, "Login Failed", format, args...)
}

// IsClientError reports whether the error's status code is in the 4xx range
// (used to decide whether a message is safe to return verbatim, §7).
func IsClientError(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code >= 400 && e.Code < 500
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := asError(err, &e)
	return e, ok
}
