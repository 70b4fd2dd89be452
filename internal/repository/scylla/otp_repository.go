package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geosnap-service/internal/model"
	"geosnap-service/internal/util"
)

// OTPRepository persists issued codes in the otp_codes table, partitioned by
// a hash of the normalized email.
type OTPRepository struct {
	client *ScyllaClient
}

func NewOTPRepository(client *ScyllaClient, logger *zap.Logger) *OTPRepository {
	return &OTPRepository{
		client: client,
	}
}

func (r *OTPRepository) Create(ctx context.Context, otp *model.OTPCode) error {
	if otp.ID == "" {
		otp.ID = uuid.New().String()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}

	query := r.client.Prepared.CreateOTP.WithContext(ctx).Bind(
		util.EmailHash(otp.Email), otp.ID, otp.Email, otp.Code,
		otp.ExpiresAt, otp.Used, otp.CreatedAt)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to create OTP record",
			zap.String("email_hash", util.EmailHash(otp.Email)),
			zap.String("otp_id", otp.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create OTP record: %w", err)
	}

	util.Debug("OTP record created",
		zap.String("otp_id", otp.ID),
		zap.Time("expires_at", otp.ExpiresAt))

	return nil
}

// InvalidateActive flips used=true on every outstanding record for the email,
// expired or not, so at most one issuable code survives the next insert.
func (r *OTPRepository) InvalidateActive(ctx context.Context, email string) error {
	emailHash := util.EmailHash(email)

	records, err := r.listByEmailHash(ctx, emailHash)
	if err != nil {
		return err
	}

	invalidated := 0
	for _, rec := range records {
		if rec.Used {
			continue
		}
		query := r.client.Prepared.MarkOTPUsed.WithContext(ctx).Bind(emailHash, rec.ID)
		if err := r.client.ExecuteWithRetry(query, 2); err != nil {
			util.Error("Failed to invalidate OTP record",
				zap.String("email_hash", emailHash),
				zap.String("otp_id", rec.ID),
				zap.Error(err))
			return fmt.Errorf("failed to invalidate OTP records: %w", err)
		}
		invalidated++
	}

	if invalidated > 0 {
		util.Debug("Prior OTP records invalidated",
			zap.String("email_hash", emailHash),
			zap.Int("count", invalidated))
	}

	return nil
}

// FindValid returns the newest unexpired unused record matching the code, or
// nil when nothing qualifies. Ties on creation time break toward newest.
func (r *OTPRepository) FindValid(ctx context.Context, email, code string, now time.Time) (*model.OTPCode, error) {
	records, err := r.listByEmailHash(ctx, util.EmailHash(email))
	if err != nil {
		return nil, err
	}

	var newest *model.OTPCode
	for i := range records {
		rec := &records[i]
		if rec.Used || rec.Code != code || rec.ExpiresAt.Before(now) {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}

	return newest, nil
}

// ConsumeIfUnused marks the record used with a conditional update. It returns
// false when a concurrent verification already consumed the code.
func (r *OTPRepository) ConsumeIfUnused(ctx context.Context, otp *model.OTPCode) (bool, error) {
	emailHash := util.EmailHash(otp.Email)

	var prevUsed bool
	applied, err := r.client.Prepared.ConsumeOTP.WithContext(ctx).
		Bind(emailHash, otp.ID).
		ScanCAS(&prevUsed)
	if err != nil {
		util.Error("Failed to consume OTP record",
			zap.String("email_hash", emailHash),
			zap.String("otp_id", otp.ID),
			zap.Error(err))
		return false, fmt.Errorf("failed to consume OTP record: %w", err)
	}

	if !applied {
		util.Warn("OTP record already consumed",
			zap.String("email_hash", emailHash),
			zap.String("otp_id", otp.ID))
		return false, nil
	}

	otp.Used = true
	return true, nil
}

func (r *OTPRepository) listByEmailHash(ctx context.Context, emailHash string) ([]model.OTPCode, error) {
	iter := r.client.Prepared.ListOTPsByEmail.WithContext(ctx).Bind(emailHash).Iter()

	var records []model.OTPCode
	var rec model.OTPCode
	for iter.Scan(&rec.ID, &rec.Email, &rec.Code, &rec.ExpiresAt, &rec.Used, &rec.CreatedAt) {
		records = append(records, rec)
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list OTP records",
			zap.String("email_hash", emailHash),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list OTP records: %w", err)
	}

	return records, nil
}
