package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrIneligible          = errors.New("ineligible")
	ErrAlreadyInOtherGuild = errors.New("already in another guild")
	ErrCooldownActive      = errors.New("guild transition cooldown active")
	ErrCapacityReached     = errors.New("capacity reached")
	ErrAlreadyHolds        = errors.New("already holds the role")
	ErrSlotChanged         = errors.New("slot changed")
	ErrStateConflict       = errors.New("guild state conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrStale               = errors.New("invitation no longer valid")
)
