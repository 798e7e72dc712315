package k8s

import "errors"

var (
	ErrNotFound = errors.New("not found")
)
