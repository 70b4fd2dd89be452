package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"geosnap-service/internal/audit"
	"geosnap-service/internal/bucketing"
	"geosnap-service/internal/config"
	"geosnap-service/internal/identity"
	"geosnap-service/internal/model"
	"geosnap-service/internal/util"
)

var (
	// ErrValidation covers malformed input; safe to surface verbatim.
	ErrValidation = errors.New("email is required")
	// ErrStore means persistence failed before any code could be honored.
	ErrStore = errors.New("otp store unavailable")
	// ErrDispatch means the email transport failed after the record was
	// persisted; the stored code remains valid.
	ErrDispatch = errors.New("failed to send verification email")
	// ErrInvalidOrExpired deliberately covers wrong, reused and expired
	// codes alike so callers cannot enumerate which applied.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	// ErrSessionMint is terminal: the code is consumed, the user must
	// request a new one.
	ErrSessionMint = errors.New("failed to create session")
	// ErrRateLimited throttles repeated issuance or verification attempts.
	ErrRateLimited = errors.New("too many requests, try again later")
)

// OTPService issues and verifies email one-time passcodes.
type OTPService struct {
	repo      model.OTPRepository
	limiter   model.RateLimitCache
	transport model.EmailTransport
	provider  identity.Provider
	recorder  *audit.Recorder
	stripes   *bucketing.StripeManager
	otpConfig config.OTPConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewOTPService(
	repo model.OTPRepository,
	limiter model.RateLimitCache,
	transport model.EmailTransport,
	provider identity.Provider,
	recorder *audit.Recorder,
	stripes *bucketing.StripeManager,
	otpConfig config.OTPConfig,
	logger *zap.Logger,
) *OTPService {
	return &OTPService{
		repo:      repo,
		limiter:   limiter,
		transport: transport,
		provider:  provider,
		recorder:  recorder,
		stripes:   stripes,
		otpConfig: otpConfig,
		logger:    logger,
		now:       time.Now,
	}
}

// Issue generates a fresh code for the email, invalidating everything issued
// before it, and dispatches it. A dispatch failure after the insert leaves a
// valid record behind; the caller decides whether to re-issue.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	startTime := s.now()

	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if s.overIssueLimit(email) {
		return ErrRateLimited
	}

	// Serialize invalidate+insert per email so concurrent requests cannot
	// leave two live codes behind.
	if s.stripes != nil {
		unlock := s.stripes.LockEmail(email)
		defer unlock()
	}

	if err := s.repo.InvalidateActive(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	code, err := GenerateCode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	otp := &model.OTPCode{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.otpConfig.Expiry),
		Used:      false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, otp); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if s.recorder != nil {
		s.recorder.RecordAuthEvent(ctx, model.EventOTPIssued, email, map[string]string{
			"otp_id": otp.ID,
		})
	}

	if s.transport == nil {
		return fmt.Errorf("%w: no email transport configured", ErrDispatch)
	}
	subject := fmt.Sprintf("%s is your GeoSnap verification code", code)
	if err := s.transport.Send(ctx, email, subject, renderCodeEmail(code)); err != nil {
		s.logger.Error("OTP email dispatch failed",
			util.String("email_hash", util.EmailHash(email)),
			util.ErrorField(err),
		)
		if s.recorder != nil {
			s.recorder.RecordAuthEvent(ctx, model.EventOTPDispatchFailed, email, map[string]string{
				"otp_id": otp.ID,
			})
		}
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	s.logger.Info("OTP issued",
		util.String("email_hash", util.EmailHash(email)),
		util.Duration("duration", s.now().Sub(startTime)),
	)

	return nil
}

// Verify consumes a code and mints a session for the resolved user. The
// record is marked used before any identity work, so a later failure cannot
// resurrect the code.
func (s *OTPService) Verify(ctx context.Context, email, code string) (*model.Session, error) {
	startTime := s.now()

	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}

	if s.overVerifyLimit(email) {
		return nil, ErrRateLimited
	}

	record, err := s.repo.FindValid(ctx, email, code, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if record == nil {
		if s.recorder != nil {
			s.recorder.RecordAuthEvent(ctx, model.EventOTPRejected, email, nil)
		}
		return nil, ErrInvalidOrExpired
	}

	consumed, err := s.repo.ConsumeIfUnused(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !consumed {
		// Another verification won the race; to the caller this is
		// indistinguishable from a wrong code.
		return nil, ErrInvalidOrExpired
	}

	if s.limiter != nil {
		if err := s.limiter.ResetVerifyCounter(email); err != nil {
			s.logger.Warn("Failed to reset verify counter", util.ErrorField(err))
		}
	}

	if err := s.resolveUser(ctx, email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMint, err)
	}

	session, err := s.provider.SessionForVerifiedEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMint, err)
	}

	if s.recorder != nil {
		s.recorder.RecordAuthEvent(ctx, model.EventOTPVerified, email, map[string]string{
			"otp_id": record.ID,
		})
	}

	s.logger.Info("OTP verified",
		util.String("email_hash", util.EmailHash(email)),
		util.Duration("duration", s.now().Sub(startTime)),
	)

	return session, nil
}

// resolveUser looks up the account, provisioning it on first sign-in. The
// create can lose an idempotency race against a concurrent verification; the
// provider's uniqueness guarantee on email makes the re-fetch safe.
func (s *OTPService) resolveUser(ctx context.Context, email string) error {
	_, err := s.provider.FindUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrUserNotFound) {
		return err
	}

	_, err = s.provider.CreateUser(ctx, email)
	if err == nil {
		return nil
	}
	if errors.Is(err, identity.ErrUserExists) {
		_, err = s.provider.FindUserByEmail(ctx, email)
	}
	return err
}

func (s *OTPService) overIssueLimit(email string) bool {
	if s.limiter == nil || s.otpConfig.IssueLimit <= 0 {
		return false
	}
	count, err := s.limiter.IncrementIssueCounter(email, s.otpConfig.IssueWindow)
	if err != nil {
		// Rate limiting is advisory; an unavailable counter never blocks
		// issuance.
		s.logger.Warn("Issue counter unavailable", util.ErrorField(err))
		return false
	}
	return count > s.otpConfig.IssueLimit
}

func (s *OTPService) overVerifyLimit(email string) bool {
	if s.limiter == nil || s.otpConfig.VerifyAttemptLimit <= 0 {
		return false
	}
	count, err := s.limiter.IncrementVerifyCounter(email, s.otpConfig.VerifyWindow)
	if err != nil {
		s.logger.Warn("Verify counter unavailable", util.ErrorField(err))
		return false
	}
	return count > s.otpConfig.VerifyAttemptLimit
}

// GenerateCode returns a uniformly random 6-digit decimal code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func renderCodeEmail(code string) string {
	return fmt.Sprintf(`
<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; max-width: 400px; margin: 0 auto; padding: 40px 20px;">
  <div style="text-align: center; margin-bottom: 32px;">
    <h1 style="font-size: 24px; color: #111; margin: 0;">GeoSnap</h1>
    <p style="color: #666; margin-top: 4px;">Location-verified photos</p>
  </div>
  <div style="background: #f8f8f8; border-radius: 12px; padding: 32px; text-align: center;">
    <p style="color: #666; margin: 0 0 16px;">Your verification code is:</p>
    <div style="font-size: 36px; font-weight: 700; letter-spacing: 8px; color: #111; margin: 16px 0;">%s</div>
    <p style="color: #999; font-size: 13px; margin: 16px 0 0;">This code expires in 10 minutes.</p>
  </div>
  <p style="color: #999; font-size: 12px; text-align: center; margin-top: 24px;">If you didn't request this code, you can safely ignore this email.</p>
</div>`, code)
}
