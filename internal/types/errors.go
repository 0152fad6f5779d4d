package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoSession = errors.New("no valid session")

	ErrInvalidBackend   = errors.New("invalid backend")
	ErrCacheStoreAccess = errors.New("cache store read/write error")
	ErrUpstream         = errors.New("upstream request failed")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
