package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAddress is returned for account addresses that are not 20-byte hex.
	ErrInvalidAddress = errors.New("invalid account address")
	// ErrInvalidOfferID is returned when an offer id is not a UUID.
	ErrInvalidOfferID = errors.New("invalid offer id")
)
