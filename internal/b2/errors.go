package b2

import "fmt"

// Error codes reported by B2 in APIError.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeUnauthorized           = "unauthorized"
	CodeUnsupported            = "unsupported"
	CodeTransactionCapExceeded = "transaction_cap_exceeded"
)

// APIError is an error reported by the B2 service.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("b2: %s: %s (status %d)", e.Code, e.Message, e.Status)
}

// TransportError is a failure to reach B2 or to understand its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("b2 transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response from B2 that is neither a success body nor a B2 error body.
type ProtocolError struct {
	Status int
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("b2 protocol: %v (status %d)", e.Err, e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
