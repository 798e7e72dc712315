package authorization

import "time"

const (
	// AuthorizedRequeueAfter is used when an authorization for the key id is already cached.
	AuthorizedRequeueAfter = 300 * time.Second

	// ErrorRequeueAfter is used when a reconciliation fails outside of the authorize call.
	ErrorRequeueAfter = 1 * time.Second
)

// RequeueAfter returns how long to wait before the next reconciliation after
// an authorize call classified as c.
func RequeueAfter(c Category) time.Duration {
	switch c {
	case Success:
		// Picks up the fresh authorization quickly.
		return 1 * time.Second
	case TransportError:
		return 30 * time.Second
	case UnauthorizedError:
		// Wrong credentials rarely fix themselves.
		return 300 * time.Second
	case OtherServiceError, UnknownError:
		return 60 * time.Second
	}
	return 60 * time.Second
}
