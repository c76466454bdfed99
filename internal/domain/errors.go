package domain

import "errors"

var (
	// ErrEmptyOrderBook is returned when a quote is requested against a book
	// side with no levels.
	ErrEmptyOrderBook = errors.New("empty order book")

	// ErrInsufficientDepth is returned when the book cannot cover the
	// requested notional.
	ErrInsufficientDepth = errors.New("order book cannot cover requested amount")

	// ErrTokenNotFound is returned when a symbol is absent from the joined
	// funding-rate set, i.e. it is not listed on both venues.
	ErrTokenNotFound = errors.New("token not listed on both venues")

	// ErrVenueUnavailable is returned by venue clients on transport or HTTP
	// failures.
	ErrVenueUnavailable = errors.New("venue unavailable")

	// ErrOrderRejected is returned when a venue refuses an order
	// (insufficient margin, bad size, closed market).
	ErrOrderRejected = errors.New("order rejected by venue")

	// ErrMalformedResponse is returned when a venue response does not match
	// the expected schema.
	ErrMalformedResponse = errors.New("malformed venue response")

	// ErrLockHeld is returned when an execution lock is already owned.
	ErrLockHeld = errors.New("execution lock already held")
)
