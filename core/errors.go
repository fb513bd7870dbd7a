package core

import "errors"

var (
	// ErrInvalidAmount rejects a non-positive point award.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnknownReward rejects a redemption of an id missing from the catalog.
	ErrUnknownReward = errors.New("unknown reward")
	// ErrInsufficientPoints rejects a redemption the balance cannot cover.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrPersistence wraps load and save failures of the persistence collaborator.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidUser rejects an empty user identifier.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrOverflow rejects a balance change that would overflow int64.
	ErrOverflow = errors.New("integer overflow")
	// ErrNotFound is returned by stores when no profile exists for a user.
	ErrNotFound = errors.New("profile not found")
)
