package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"billine-gateway/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback outcomes stored in billine_callback_logs.outcome
const (
	OutcomeAccepted          = "accepted"
	OutcomeDuplicate         = "duplicate"
	OutcomeRejectedFormat    = "rejected_format"
	OutcomeRejectedSignature = "rejected_signature"
	OutcomeFailed            = "failed"
)

// CallbackLog represents an audit log entry for one received callback
type CallbackLog struct {
	LogID       string
	InvoiceID   string
	OrderNo     string
	Status      string
	Outcome     string
	RemoteAddr  string
	Fingerprint string
	Payload     []byte
	Error       string
	TraceID     string
	CreatedAt   time.Time
}

// DBClient interface for database operations
type DBClient interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository handles audit log storage
type Repository struct {
	db      DBClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db DBClient, logger *zap.Logger) *Repository {
	return &Repository{
		db:      db,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// StoreCallbackLog stores a callback log entry
// Note: created_at is set by the database (DEFAULT now())
func (r *Repository) StoreCallbackLog(ctx context.Context, log *CallbackLog) error {
	if log.LogID == "" {
		log.LogID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `INSERT INTO audit.billine_callback_logs (
		log_id, invoice_id, order_no, status, outcome,
		remote_addr, fingerprint, payload, error, trace_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		log.LogID,
		sqlNullString(log.InvoiceID),
		sqlNullString(log.OrderNo),
		sqlNullString(log.Status),
		log.Outcome,
		sqlNullString(log.RemoteAddr),
		log.Fingerprint,
		sqlNullJSONB(log.Payload),
		sqlNullString(log.Error),
		sqlNullString(log.TraceID),
	)
	if err != nil {
		r.logger.Error("failed to store callback log", zap.Error(err))
		return errors.WrapDomainError(err, errors.CodeDependency, "audit log storage failed", "database error")
	}

	r.logger.Debug("audit callback stored",
		zap.String("log_id", log.LogID),
		zap.String("invoice_id", log.InvoiceID),
		zap.String("outcome", log.Outcome),
	)
	return nil
}

// sqlNullJSONB keeps well-formed JSON for the jsonb column and drops anything
// else, since a malformed body would fail the insert.
func sqlNullJSONB(data []byte) interface{} {
	if len(data) == 0 || !json.Valid(data) {
		return nil
	}
	return data
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
