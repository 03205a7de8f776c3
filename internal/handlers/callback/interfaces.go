package callback

import (
	"context"

	"billine-gateway/internal/models"
	"billine-gateway/internal/services/audit"
	"billine-gateway/internal/services/idempotency"
)

// CallbackVerifier parses and authenticates gateway callbacks
type CallbackVerifier interface {
	ParseCallback(raw []byte) (*models.CallbackIframe, error)
	VerifyCallbackIframe(cb *models.CallbackIframe) error
}

// Deduplicator records which callbacks were already handled
type Deduplicator interface {
	Claim(ctx context.Context, cb *models.CallbackIframe, raw []byte) (idempotency.Claim, error)
	Release(ctx context.Context, claim idempotency.Claim) error
}

// EventPublisher hands verified callbacks to downstream consumers
type EventPublisher interface {
	PublishCallback(ctx context.Context, event *models.CallbackReceivedEvent) (string, error)
}

// AuditService stores every received callback
type AuditService interface {
	LogCallback(ctx context.Context, params *audit.CallbackLogParams) error
}

// MetricsRecorder counts callback outcomes
type MetricsRecorder interface {
	RecordCallbackVerification(result string)
	RecordCallbackDuplicate()
	RecordCallbackPublished()
	RecordDependencyError(dependency string)
}
