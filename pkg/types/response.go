// Package types holds the wire envelopes shared by every LearnHub JSON
// endpoint. Handlers never write raw payloads; they go through these so
// clients can rely on a stable {"data": ...} / {"error": ...} shape.
package types

// SuccessEnvelope wraps every successful response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Details is only populated for
// client-caused failures (validation field maps, for example); server-side
// causes stay in the logs.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
