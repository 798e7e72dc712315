package authorization

import (
	"errors"

	"github.com/WirelessCar/b2-operator/internal/b2"
)

// Category is the classified outcome of an authorize call.
type Category int

const (
	Success Category = iota
	TransportError
	UnauthorizedError
	OtherServiceError
	UnknownError
)

// Categories returns every Category.
func Categories() []Category {
	return []Category{Success, TransportError, UnauthorizedError, OtherServiceError, UnknownError}
}

func (c Category) String() string {
	switch c {
	case Success:
		return "success"
	case TransportError:
		return "transport_error"
	case UnauthorizedError:
		return "unauthorized"
	case OtherServiceError:
		return "service_error"
	case UnknownError:
		return "unknown_error"
	}
	return "invalid"
}

// Classify maps the error of an authorize call to a Category. A nil error is Success.
// A *b2.ProtocolError means B2 was reached but answered unintelligibly and is UnknownError.
func Classify(err error) Category {
	if err == nil {
		return Success
	}

	var transportErr *b2.TransportError
	if errors.As(err, &transportErr) {
		return TransportError
	}

	var apiErr *b2.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == b2.CodeUnauthorized {
			return UnauthorizedError
		}
		return OtherServiceError
	}

	return UnknownError
}
