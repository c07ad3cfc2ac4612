package errors

// ErrorResponse is the envelope every failed request renders. Success is
// always false, it exists so callers can branch on one field.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the caller-facing message resolved from the error's
// hints plus any reportable details the error was built with. Internal
// messages never leak here.
type ErrorDetail struct {
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}
