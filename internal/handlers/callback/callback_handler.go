package callback

import (
	"context"
	"io"
	"net/http"
	"time"

	"billine-gateway/internal/middleware"
	"billine-gateway/internal/models"
	auditrepo "billine-gateway/internal/repository/audit"
	"billine-gateway/internal/services/audit"
	"billine-gateway/internal/services/tracing"
	"billine-gateway/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds the size of an accepted callback body
const MaxBodyBytes = 64 << 10

// Handler receives Billine iframe/h2h callbacks on POST /callbacks/iframe.
//
// A callback is acknowledged with 200 "OK" once it has been verified and
// published, or when it is a redelivery of one that already was. Any other
// answer makes the gateway retry later.
type Handler struct {
	verifier  CallbackVerifier
	dedupe    Deduplicator
	publisher EventPublisher
	audit     AuditService
	metrics   MetricsRecorder
	tracer    *tracing.Service
	logger    *zap.Logger
}

// NewHandler creates a new callback handler
func NewHandler(
	verifier CallbackVerifier,
	dedupe Deduplicator,
	publisher EventPublisher,
	auditService AuditService,
	metrics MetricsRecorder,
	tracer *tracing.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		verifier:  verifier,
		dedupe:    dedupe,
		publisher: publisher,
		audit:     auditService,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// HandleIframeCallback handles POST /callbacks/iframe
func (h *Handler) HandleIframeCallback(c *gin.Context) {
	ctx, span := h.tracer.StartServerSpan(c.Request.Context(), "billine.callback", nil)
	defer span.End()

	traceparent := middleware.GetTraceparent(c)
	traceID := middleware.GetTraceID(c)
	remoteAddr := middleware.GetClientIP(c)

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		h.reject(ctx, c, nil, raw, auditrepo.OutcomeRejectedFormat,
			errors.NewFormatError("callback", "body could not be read"))
		return
	}

	cb, err := h.verifier.ParseCallback(raw)
	if err != nil {
		h.metrics.RecordCallbackVerification("malformed")
		h.reject(ctx, c, nil, raw, auditrepo.OutcomeRejectedFormat, err)
		return
	}
	tracing.AddSpanAttributes(span, map[string]string{
		tracing.AttrInvoiceID: cb.InvoiceID,
		tracing.AttrStatus:    string(cb.Status),
	})

	if err := h.verifier.VerifyCallbackIframe(cb); err != nil {
		h.reject(ctx, c, cb, raw, auditrepo.OutcomeRejectedSignature, err)
		return
	}

	claim, err := h.dedupe.Claim(ctx, cb, raw)
	if err != nil {
		h.metrics.RecordDependencyError("redis")
		h.reject(ctx, c, cb, raw, auditrepo.OutcomeFailed, err)
		return
	}
	if claim.Duplicate {
		h.metrics.RecordCallbackDuplicate()
		h.logger.Info("duplicate callback acknowledged",
			zap.String("invoice_id", cb.InvoiceID),
			zap.String("status", string(cb.Status)),
			zap.Bool("conflict", claim.Conflict),
			zap.String("trace_id", traceID))
		h.logCallback(ctx, cb, raw, auditrepo.OutcomeDuplicate, remoteAddr, traceID, nil)
		h.respondOK(c)
		return
	}

	event := models.NewCallbackReceivedEvent(cb, uuid.New().String(), traceparent, traceID, time.Now().UTC())
	if _, err := h.publisher.PublishCallback(ctx, event); err != nil {
		h.metrics.RecordDependencyError("redis")
		if releaseErr := h.dedupe.Release(ctx, claim); releaseErr != nil {
			h.logger.Error("failed to release callback claim", zap.Error(releaseErr), zap.String("invoice_id", cb.InvoiceID))
		}
		h.reject(ctx, c, cb, raw, auditrepo.OutcomeFailed, err)
		return
	}
	h.metrics.RecordCallbackPublished()

	h.logger.Info("callback accepted",
		zap.String("invoice_id", cb.InvoiceID),
		zap.String("order_no", cb.OrderNo),
		zap.String("status", string(cb.Status)),
		zap.String("event_id", event.EventID),
		zap.String("trace_id", traceID))
	h.logCallback(ctx, cb, raw, auditrepo.OutcomeAccepted, remoteAddr, traceID, nil)
	h.respondOK(c)
}

func (h *Handler) reject(ctx context.Context, c *gin.Context, cb *models.CallbackIframe, raw []byte, outcome string, err error) {
	traceID := middleware.GetTraceID(c)
	status := errors.GetHTTPStatus(err)

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status_code", status),
		zap.String("outcome", outcome),
		zap.String("remote_addr", middleware.GetClientIP(c)),
		zap.String("trace_id", traceID),
	}
	if cb != nil {
		fields = append(fields, zap.String("invoice_id", cb.InvoiceID))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("callback processing failed", fields...)
	} else {
		h.logger.Warn("callback rejected", fields...)
	}

	h.logCallback(ctx, cb, raw, outcome, middleware.GetClientIP(c), traceID, err)
	h.respondError(c, status, err)
}

func (h *Handler) logCallback(ctx context.Context, cb *models.CallbackIframe, raw []byte, outcome, remoteAddr, traceID string, cause error) {
	if h.audit == nil {
		return
	}
	err := h.audit.LogCallback(ctx, &audit.CallbackLogParams{
		Callback:   cb,
		Raw:        raw,
		Outcome:    outcome,
		RemoteAddr: remoteAddr,
		TraceID:    traceID,
		Err:        cause,
	})
	if err != nil {
		h.metrics.RecordDependencyError("postgres")
	}
}

func (h *Handler) respondOK(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) respondError(c *gin.Context, status int, err error) {
	body := gin.H{"error": "internal error"}
	if domainErr, ok := errors.AsDomainError(err); ok {
		body = gin.H{"error": domainErr.Message, "code": domainErr.Code}
	}
	c.JSON(status, body)
}
