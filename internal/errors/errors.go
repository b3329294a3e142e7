package errors

import "errors"

// Sentinel errors shared by the service and API layers. Services wrap them
// with fmt.Errorf("%w: ...") and the API maps them to HTTP status codes with
// errors.Is, so no service code needs to know about HTTP.

var (
	// ErrNotFound signifies that a requested chat could not be located.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that a request body or UI message failed
	// schema validation. Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current
	// state of a chat. Mapped to 409 Conflict.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission is mapped to 403 Forbidden.
	ErrPermission = errors.New("permission denied")

	// ErrUnavailable signifies that a collaborator the request depends on
	// (history store, model provider) could not be reached before the
	// response stream started. Mapped to 503 Service Unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInternal hides implementation details from clients.
	// Mapped to 500 Internal Server Error.
	ErrInternal = errors.New("internal server error")
)
