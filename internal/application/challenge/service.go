package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/id"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/otp"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/phone"
	pkgtoken "github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/token"
)

// AttemptStore is the keyed store of in-flight login attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *domain.LoginAttempt) error
	Get(ctx context.Context, phoneNumber string) (*domain.LoginAttempt, error)
	Advance(ctx context.Context, phoneNumber, attemptSession string, roundIndex int) error
	Expire(ctx context.Context, phoneNumber string) error
}

// UserStore is the slice of the user directory the challenge flow needs.
type UserStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*domain.User, error)
	CreateIfAbsent(ctx context.Context, u *domain.User) error
	MarkPhoneVerified(ctx context.Context, userID string) error
}

// SMSSender delivers the one-time code out-of-band.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Service drives the challenge/response rounds of a passwordless login.
type Service interface {
	// Initiate starts (or resumes) a login attempt for the phone number and
	// returns the opaque attempt session the client must echo back with its
	// answer. Re-invoking before any answer reuses the pending code, so a
	// user who requested the screen twice still sees the original SMS code.
	Initiate(ctx context.Context, phoneNumber string) (attemptSession string, err error)
	// Answer verifies a submitted code. A correct answer is terminal success
	// and returns the authenticated user; a third wrong answer is terminal
	// failure and discards the attempt.
	Answer(ctx context.Context, phoneNumber, attemptSession, code string) (*domain.User, error)
}

// ServiceDeps wires the service's collaborators. Now may be nil (time.Now).
type ServiceDeps struct {
	AttemptRepo AttemptStore
	UserRepo    UserStore
	SMSSender   SMSSender
	Now         func() time.Time
}

type service struct {
	attemptRepo AttemptStore
	userRepo    UserStore
	smsSender   SMSSender
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		attemptRepo: deps.AttemptRepo,
		userRepo:    deps.UserRepo,
		smsSender:   deps.SMSSender,
		now:         now,
	}
}

func (s *service) Initiate(ctx context.Context, phoneNumber string) (string, error) {
	// Malformed numbers are rejected before any code is generated or sent.
	if !phone.Valid(phoneNumber) {
		return "", fmt.Errorf("phone number must be E.164: %w", domain.ErrBadRequest)
	}

	u, err := s.ensureUser(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if !u.Enable {
		return "", fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}

	// Reuse an attempt that is still awaiting its first (or next) answer so a
	// repeated screen request does not invalidate the code already delivered.
	if a, err := s.attemptRepo.Get(ctx, phoneNumber); err == nil && !a.Expired(s.now()) {
		return a.AttemptSession, nil
	}

	code, err := otp.Generate()
	if err != nil {
		return "", err
	}
	attemptSession, err := pkgtoken.NewAttemptSession()
	if err != nil {
		return "", err
	}
	a := &domain.LoginAttempt{
		Phone:          phoneNumber,
		AttemptSession: attemptSession,
		RoundIndex:     0,
		PendingCode:    code,
		ExpiresAt:      s.now().Add(domain.AttemptTTL).Unix(),
	}
	if err := s.attemptRepo.Create(ctx, a); err != nil {
		return "", err
	}

	s.deliver(ctx, phoneNumber, code)
	return attemptSession, nil
}

func (s *service) Answer(ctx context.Context, phoneNumber, attemptSession, code string) (*domain.User, error) {
	a, err := s.attemptRepo.Get(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("code expired or not requested, request a new code: %w", domain.ErrUnauthorized)
	}
	if a.Expired(s.now()) {
		if err := s.attemptRepo.Expire(ctx, phoneNumber); err != nil {
			slog.Warn("failed to discard expired attempt", "phone", phoneNumber, "err", err)
		}
		return nil, fmt.Errorf("code expired, request a new code: %w", domain.ErrUnauthorized)
	}
	if a.AttemptSession != attemptSession {
		return nil, fmt.Errorf("stale challenge session: %w", domain.ErrUnauthorized)
	}

	if !otp.Match(code, a.PendingCode) {
		next := a.RoundIndex + 1
		if next >= domain.MaxChallengeRounds {
			// Terminal failure: no further retries for this attempt session.
			if err := s.attemptRepo.Expire(ctx, phoneNumber); err != nil {
				slog.Warn("failed to discard failed attempt", "phone", phoneNumber, "err", err)
			}
			return nil, fmt.Errorf("too many incorrect codes: %w", domain.ErrUnauthorized)
		}
		if err := s.attemptRepo.Advance(ctx, phoneNumber, attemptSession, next); err != nil {
			return nil, err
		}
		// Challenge re-issued for the new round; the pending code stays valid.
		s.deliver(ctx, phoneNumber, a.PendingCode)
		return nil, fmt.Errorf("incorrect code: %w", domain.ErrUnauthorized)
	}

	if err := s.attemptRepo.Expire(ctx, phoneNumber); err != nil {
		slog.Warn("failed to discard completed attempt", "phone", phoneNumber, "err", err)
	}

	u, err := s.userRepo.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if !u.PhoneVerified {
		if err := s.userRepo.MarkPhoneVerified(ctx, u.UserID); err != nil {
			slog.Warn("failed to mark phone verified", "user_id", u.UserID, "err", err)
		} else {
			u.PhoneVerified = true
		}
	}
	return u, nil
}

// ensureUser looks up the subject and auto-registers unknown phone numbers.
// A lost registration race falls back to the winner's record.
func (s *service) ensureUser(ctx context.Context, phoneNumber string) (*domain.User, error) {
	u, err := s.userRepo.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	u = &domain.User{
		UserID:    id.New(),
		Phone:     phoneNumber,
		Role:      domain.RoleUser,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.CreateIfAbsent(ctx, u); err != nil {
		return s.userRepo.GetByPhone(ctx, phoneNumber)
	}
	return u, nil
}

// deliver sends the code out-of-band. Delivery failure never fails the
// round: the code stays valid and delivery is retried at the next round.
func (s *service) deliver(ctx context.Context, phoneNumber, code string) {
	if err := s.smsSender.SendSMS(ctx, phoneNumber, "Your verification code is "+code); err != nil {
		slog.Warn("failed to deliver verification code", "phone", phoneNumber, "err", err)
	}
}
