package api //nolint:revive // package name is intentional

// ErrorResponse is the structured error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// MessageResponse is the flat error body used by the proxy and lookup
// routes, e.g. {"error": "Not Found"}.
type MessageResponse struct {
	Error string `json:"error"`
}
