package storage

import (
	"context"
	"time"

	"github.com/chris/trustline/pkg/models"
)

// ConsumeResult is the outcome of presenting a code against a pending challenge.
type ConsumeResult int

const (
	// ChallengeMissing means no unexpired challenge exists for the phone.
	ChallengeMissing ConsumeResult = iota
	// ChallengeMismatch means the code was wrong and the challenge is still pending.
	ChallengeMismatch
	// ChallengeExhausted means the code was wrong and the attempt cap invalidated the challenge.
	ChallengeExhausted
	// ChallengeMatched means the code was right and the challenge has been deleted.
	ChallengeMatched
)

func (r ConsumeResult) String() string {
	switch r {
	case ChallengeMismatch:
		return "mismatch"
	case ChallengeExhausted:
		return "exhausted"
	case ChallengeMatched:
		return "matched"
	default:
		return "missing"
	}
}

// ChallengeStore keeps pending one-time codes keyed by phone.
type ChallengeStore interface {
	// SaveChallenge stores the challenge, replacing any pending one for the same phone.
	SaveChallenge(ctx context.Context, challenge *models.Challenge) error

	// ConsumeChallenge compares code with the pending challenge and deletes it on a match, atomically.
	// A mismatch counts an attempt; reaching maxAttempts deletes the challenge.
	ConsumeChallenge(ctx context.Context, phone, code string, now time.Time, maxAttempts int) (ConsumeResult, error)
}
