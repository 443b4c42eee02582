// Package ratelimit paces outbound chat messages.
//
// A Pacer spaces the items of one delivery. A Tracker keeps every chat
// together under the platform's global send rate and honours retry-after
// hints the platform returns when that rate is exceeded anyway.
package ratelimit

import (
	"time"
)

// Pacing bounds for the delay between two items of one delivery.
const (
	// MinItemDelay is the shortest accepted delay between items.
	MinItemDelay = 500 * time.Millisecond

	// MaxItemDelay is the longest accepted delay between items.
	MaxItemDelay = time.Second

	// DefaultItemDelay is used when no delay is configured.
	DefaultItemDelay = time.Second
)

// Bot-wide send limits.
const (
	// DefaultSendRate is the default number of messages per second across all chats.
	// The platform starts rejecting at roughly 30.
	DefaultSendRate = 25

	// DefaultSendBurst is the default number of messages that may go out back to back.
	DefaultSendBurst = 5
)

// State is the platform-imposed send block, if any.
type State struct {
	// BlockedUntil is when sending may resume.
	// Zero when the platform never asked to back off.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when the last retry-after hint arrived.
	LastUpdate time.Time `json:"last_update"`

	// Blocks counts retry-after hints received.
	Blocks int `json:"blocks"`
}

// IsBlocked reports whether sends must wait at now.
func (s State) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilReset returns the duration until sending may resume.
// Returns 0 if the block has already passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ClampItemDelay forces d into [MinItemDelay, MaxItemDelay].
// Zero or negative selects DefaultItemDelay.
func ClampItemDelay(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultItemDelay
	case d < MinItemDelay:
		return MinItemDelay
	case d > MaxItemDelay:
		return MaxItemDelay
	}
	return d
}
