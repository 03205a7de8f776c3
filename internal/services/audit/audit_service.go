package audit

import (
	"context"

	"billine-gateway/internal/models"
	"billine-gateway/internal/repository/audit"
	"billine-gateway/internal/services/idempotency"
	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"

	"go.uber.org/zap"
)

// Repository interface for audit operations
type Repository interface {
	StoreCallbackLog(ctx context.Context, log *audit.CallbackLog) error
}

// MetricsRecorder counts audit writes
type MetricsRecorder interface {
	RecordAuditLogWritten(status string)
}

// Service provides audit logging functionality. A Service without a
// repository accepts every call and stores nothing.
type Service struct {
	repo    Repository
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewService creates a new audit service
func NewService(repo Repository, metrics MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

// Enabled reports whether entries are persisted
func (s *Service) Enabled() bool {
	return s.repo != nil
}

// CallbackLogParams contains parameters for callback logging
type CallbackLogParams struct {
	// Callback is nil when the body could not be parsed.
	Callback   *models.CallbackIframe
	Raw        []byte
	Outcome    string
	RemoteAddr string
	TraceID    string
	Err        error
}

// LogCallback stores one received callback, accepted or not
func (s *Service) LogCallback(ctx context.Context, params *CallbackLogParams) error {
	if s.repo == nil {
		return nil
	}

	log := &audit.CallbackLog{
		Outcome:     params.Outcome,
		RemoteAddr:  params.RemoteAddr,
		Fingerprint: idempotency.Fingerprint(params.Raw),
		Payload:     params.Raw,
		TraceID:     params.TraceID,
	}
	if params.Err != nil {
		log.Error = params.Err.Error()
	}
	if cb := params.Callback; cb != nil {
		log.InvoiceID = cb.InvoiceID
		log.OrderNo = cb.OrderNo
		log.Status = string(cb.Status)
	} else {
		log.InvoiceID, log.OrderNo, log.Status = identifyRaw(params.Raw)
	}

	if err := s.repo.StoreCallbackLog(ctx, log); err != nil {
		s.record("failure")
		s.logger.Error("failed to log callback", zap.Error(err), zap.String("invoice_id", log.InvoiceID))
		return errors.WrapDomainError(err, errors.CodeDependency, "audit logging failed", "failed to store log")
	}
	s.record("success")
	return nil
}

func (s *Service) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordAuditLogWritten(status)
	}
}

// identifyRaw pulls the identifying fields out of a body that failed typed
// parsing, so rejected callbacks can still be searched by invoice.
func identifyRaw(raw []byte) (invoiceID, orderNo, status string) {
	m, err := signing.FromJSON(raw)
	if err != nil {
		return "", "", ""
	}
	fields := m.Fields()
	text := func(name string) string {
		v, ok := fields.Lookup(name)
		if !ok || v.Kind() != signing.KindText {
			return ""
		}
		s, _ := v.Render()
		return s
	}
	return text("co_inv_id"), text("co_order_no"), text("co_inv_st")
}
