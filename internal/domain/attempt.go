package domain

import "time"

// AttemptState tags where a login attempt sits in the challenge flow.
type AttemptState int

const (
	AttemptAwaitingAnswer AttemptState = iota
	AttemptSucceeded
	AttemptFailed
	AttemptExpired
)

func (s AttemptState) String() string {
	switch s {
	case AttemptAwaitingAnswer:
		return "awaiting_answer"
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailed:
		return "failed"
	case AttemptExpired:
		return "expired"
	default:
		return "unknown"
	}
}

const (
	// MaxChallengeRounds is the number of wrong answers tolerated before the
	// attempt becomes terminally failed.
	MaxChallengeRounds = 3
	// AttemptTTL is the validity window of an in-flight login attempt.
	AttemptTTL = 5 * time.Minute
)

// LoginAttempt is one in-progress phone authentication.
// PK: phone. ExpiresAt doubles as the DynamoDB TTL attribute.
type LoginAttempt struct {
	Phone          string `json:"phone" dynamodbav:"phone"`
	AttemptSession string `json:"attempt_session" dynamodbav:"attempt_session"`
	RoundIndex     int    `json:"round_index" dynamodbav:"round_index"`
	PendingCode    string `json:"-" dynamodbav:"pending_code"`
	ExpiresAt      int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the attempt's window has passed at the given time.
func (a *LoginAttempt) Expired(now time.Time) bool {
	return a.ExpiresAt < now.Unix()
}
