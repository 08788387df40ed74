// Package otp issues and verifies the one-time codes that gate registration.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/metrics"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

const (
	// CodeLength is the number of decimal digits in a code.
	CodeLength = 6
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 300 * time.Second
	// DefaultMaxAttempts is the number of wrong codes that invalidates a pending challenge.
	DefaultMaxAttempts = 5
)

var codeSpace = big.NewInt(1_000_000)

// ErrInvalidPhone is returned when the phone number is blank.
var ErrInvalidPhone = &errs.Error{Kind: errs.KindValidation, Code: "INVALID_PHONE", Message: "phone number is required"}

// Notifier delivers a code to the phone's owner.
type Notifier interface {
	Send(ctx context.Context, phone, code string) error
}

// LogNotifier writes codes to the log instead of sending them. Development only.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, phone, code string) error {
	slog.Log(ctx, slog.LevelInfo, "otp issued", "phone", phone, "code", code)
	return nil
}

// Service implements code issuance and verification over a ChallengeStore.
type Service struct {
	Store       storage.ChallengeStore
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Now         func() time.Time
	Entropy     io.Reader
	TTL         time.Duration
	MaxAttempts int
}

// NewService creates a Service with the default TTL and attempt cap.
func NewService(store storage.ChallengeStore, notifier Notifier, m *metrics.Metrics) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		Store:       store,
		Notifier:    notifier,
		Metrics:     m,
		Now:         time.Now,
		Entropy:     rand.Reader,
		TTL:         DefaultTTL,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Issue generates a fresh code for phone, replacing any pending one, and hands it to the notifier.
func (s *Service) Issue(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrInvalidPhone
	}

	code, err := generateCode(s.Entropy)
	if err != nil {
		return &errs.Error{Kind: errs.KindInternal, Code: "OTP_GENERATION_FAILED", Message: "failed to generate code", Err: err}
	}

	now := s.Now().UTC()
	challenge := &models.Challenge{
		Phone:     phone,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Store.SaveChallenge(ctx, challenge); err != nil {
		return errs.Transient("failed to save otp challenge", err)
	}

	if err := s.Notifier.Send(ctx, phone, code); err != nil {
		return errs.Transient("failed to deliver otp", err)
	}

	s.Metrics.IncOTPIssued()
	slog.Log(ctx, slog.LevelDebug, "otp challenge stored", "phone", phone, "expires_at", challenge.ExpiresAt)
	return nil
}

// Verify reports whether code matches the pending challenge for phone. A match consumes the
// challenge. Missing, expired and wrong codes are a false result, not an error.
func (s *Service) Verify(ctx context.Context, phone, code string) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, ErrInvalidPhone
	}

	res, err := s.Store.ConsumeChallenge(ctx, phone, strings.TrimSpace(code), s.Now().UTC(), s.MaxAttempts)
	if err != nil {
		s.Metrics.IncOTPVerify("error")
		return false, errs.Transient("failed to verify otp challenge", err)
	}
	s.Metrics.IncOTPVerify(res.String())

	if res == storage.ChallengeExhausted {
		slog.Log(ctx, slog.LevelWarn, "otp challenge invalidated after too many attempts", "phone", phone)
	}
	return res == storage.ChallengeMatched, nil
}

func generateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
