package access

import "errors"

var (
	ErrGrantNotFound = errors.New("access grant not found")
	ErrSelfGrant     = errors.New("owner cannot be granted access to own device")
)
