package redis

import "errors"

var (
	ErrInvalidURL = errors.New("invalid redis connection url")
	ErrNotReady   = errors.New("redis did not answer before the connect deadline")
	ErrPingFailed = errors.New("redis ping failed")
)
