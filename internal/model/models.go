package model

import (
	"context"
	"encoding/json"
	"time"
)

// -------------------- OTP MODEL --------------------

// OTPCode is one issued passcode row. Multiple historical rows may exist per
// email; at most one used=false row is honored at verification time.
type OTPCode struct {
	ID        string    `json:"id" db:"id"`                 // UUID
	Email     string    `json:"email" db:"email"`           // lower-cased
	Code      string    `json:"code" db:"code"`             // 6 ASCII digits
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// -------------------- SESSION MODEL --------------------

// Session is the credential bundle minted by the identity provider. The
// service treats it as opaque and hands it straight back to the client.
type Session struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user,omitempty"`
}

// -------------------- LOCATION MODEL --------------------

// LocationSample is a raw device geolocation fix. Timestamp is epoch millis,
// matching what browser geolocation reports.
type LocationSample struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         *float64 `json:"altitude"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
	Timestamp        int64    `json:"timestamp"`
	Address          string   `json:"address,omitempty"`
	IsMocked         bool     `json:"isMocked,omitempty"`
}

// Confidence grades a spoofing verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// SpoofingVerdict is the heuristic assessment of a location sample. Reasons
// are ordered; the first one is what the client surfaces to the user.
type SpoofingVerdict struct {
	IsSuspicious bool       `json:"isSuspicious"`
	Reasons      []string   `json:"reasons"`
	Confidence   Confidence `json:"confidence"`
}

// -------------------- AUDIT MODEL --------------------

// Auth event types emitted to the audit sinks.
const (
	EventOTPIssued         = "otp.issued"
	EventOTPDispatchFailed = "otp.dispatch_failed"
	EventOTPVerified       = "otp.verified"
	EventOTPRejected       = "otp.rejected"
	EventLocationFlagged   = "location.flagged"
)

// AuthEvent is a single audit record. EmailEncrypted carries the KMS-wrapped
// address when encryption is enabled; EmailHash is always safe to index.
type AuthEvent struct {
	EventID        string            `json:"event_id"`
	Type           string            `json:"type"`
	EmailHash      string            `json:"email_hash"`
	EmailEncrypted string            `json:"email_encrypted,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// -------------------- REPOSITORY INTERFACES --------------------

// OTPRepository defines persistence for issued codes.
type OTPRepository interface {
	Create(ctx context.Context, otp *OTPCode) error
	// InvalidateActive flips used=true on every used=false row for the email,
	// regardless of expiry.
	InvalidateActive(ctx context.Context, email string) error
	// FindValid returns the newest row matching (email, code, used=false,
	// expires_at >= now), or nil when nothing qualifies.
	FindValid(ctx context.Context, email, code string, now time.Time) (*OTPCode, error)
	// ConsumeIfUnused marks the record used. Returns false when another
	// verification got there first.
	ConsumeIfUnused(ctx context.Context, otp *OTPCode) (bool, error)
}

// RateLimitCache tracks issuance and verification attempt counters.
type RateLimitCache interface {
	IncrementIssueCounter(email string, window time.Duration) (int, error)
	IncrementVerifyCounter(email string, window time.Duration) (int, error)
	ResetVerifyCounter(email string) error
}

// EmailTransport delivers a rendered message. Failure is surfaced, not retried.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
