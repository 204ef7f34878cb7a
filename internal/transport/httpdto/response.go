// Package httpdto holds the request and response shapes of the HTTP
// API. Handlers bind and validate against these types so the domain
// entities never leak their internal fields onto the wire.
package httpdto

// Response is the envelope every endpoint returns. Success carries the
// payload in Data; errors carry a human-readable message plus a stable
// machine code for clients to branch on.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}
