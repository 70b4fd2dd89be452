// Package audit records auth and location events to the configured sinks.
// Every sink is best-effort: audit failures are logged, never surfaced to the
// request path.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geosnap-service/internal/model"
	"geosnap-service/internal/util"
)

// EventPublisher is the kafka-facing sink.
type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// DocumentIndexer is the elasticsearch-facing sink.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, docID string, body []byte) error
}

// AnalyticsSink is the clickhouse-facing sink for verdict rows.
type AnalyticsSink interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// FieldEncryptor wraps PII before it reaches a sink.
type FieldEncryptor interface {
	Enabled() bool
	EncryptField(ctx context.Context, plaintext string) (string, error)
}

const verdictInsert = `
    INSERT INTO spoofing_verdicts
        (event_id, email_hash, latitude, longitude, accuracy, suspicious, confidence, reasons, observed_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sinkTimeout = 5 * time.Second

// Recorder fans audit records out to whichever sinks are configured. Any sink
// may be nil.
type Recorder struct {
	publisher EventPublisher
	indexer   DocumentIndexer
	analytics AnalyticsSink
	encryptor FieldEncryptor
	index     string
}

func NewRecorder(publisher EventPublisher, indexer DocumentIndexer, analytics AnalyticsSink, encryptor FieldEncryptor, auditIndex string) *Recorder {
	return &Recorder{
		publisher: publisher,
		indexer:   indexer,
		analytics: analytics,
		encryptor: encryptor,
		index:     auditIndex,
	}
}

// RecordAuthEvent emits one audit event for an OTP operation. The plaintext
// email never reaches a sink: the hash is always present, the KMS-wrapped
// address only when encryption is enabled.
func (r *Recorder) RecordAuthEvent(ctx context.Context, eventType, email string, metadata map[string]string) {
	event := model.AuthEvent{
		EventID:   uuid.New().String(),
		Type:      eventType,
		EmailHash: util.EmailHash(email),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if r.encryptor != nil && r.encryptor.Enabled() {
		encrypted, err := r.encryptor.EncryptField(ctx, util.NormalizeEmail(email))
		if err != nil {
			util.Warn("Failed to encrypt email for audit event",
				zap.String("event_type", eventType),
				zap.Error(err))
		} else {
			event.EmailEncrypted = encrypted
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to encode audit event", zap.Error(err))
		return
	}

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if r.publisher != nil {
		if err := r.publisher.Publish(sinkCtx, []byte(event.EmailHash), payload); err != nil {
			util.Warn("Failed to publish audit event",
				zap.String("event_type", eventType),
				zap.Error(err))
		}
	}

	if r.indexer != nil {
		if err := r.indexer.IndexDocument(sinkCtx, r.index, event.EventID, payload); err != nil {
			util.Warn("Failed to index audit event",
				zap.String("event_type", eventType),
				zap.Error(err))
		}
	}
}

// RecordVerdict writes one spoofing verdict row to the analytics store and,
// when suspicious, an audit event.
func (r *Recorder) RecordVerdict(ctx context.Context, sample model.LocationSample, verdict model.SpoofingVerdict) {
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if r.analytics != nil {
		err := r.analytics.Exec(sinkCtx, verdictInsert,
			uuid.New().String(),
			"", // no identity attached to location analysis
			sample.Latitude,
			sample.Longitude,
			sample.Accuracy,
			verdict.IsSuspicious,
			string(verdict.Confidence),
			verdict.Reasons,
			time.Now().UTC(),
		)
		if err != nil {
			util.Warn("Failed to record verdict row", zap.Error(err))
		}
	}

	if verdict.IsSuspicious && r.publisher != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"event_id":   uuid.New().String(),
			"type":       model.EventLocationFlagged,
			"confidence": verdict.Confidence,
			"reasons":    verdict.Reasons,
			"created_at": time.Now().UTC(),
		})
		if err != nil {
			return
		}
		if err := r.publisher.Publish(sinkCtx, []byte(model.EventLocationFlagged), payload); err != nil {
			util.Warn("Failed to publish location event", zap.Error(err))
		}
	}
}
