package rate

import "errors"

var (
	// ErrRateLimited is returned when an attempt is refused by a [Limiter].
	ErrRateLimited = errors.New("rate limited")
)
