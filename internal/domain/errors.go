package domain

import "errors"

var (
	// ErrOnCooldown is returned when a challenge for an ordered pair is
	// created before the pair's cooldown has expired.
	ErrOnCooldown = errors.New("challenge pair on cooldown")

	// ErrAlreadyPending is returned when a pending challenge already exists
	// for the ordered (challenger, target) pair.
	ErrAlreadyPending = errors.New("challenge already pending")

	// ErrInvalidState is returned when a challenge transition starts from a
	// state other than pending.
	ErrInvalidState = errors.New("challenge not in expected state")

	// ErrStatsCommitFailed means the match transaction did not apply cleanly
	// to both sides and was rolled back. Safe to retry with the same result.
	ErrStatsCommitFailed = errors.New("stats commit failed")

	ErrProfileNotFound   = errors.New("profile not found")
	ErrChallengeNotFound = errors.New("challenge not found")
)
