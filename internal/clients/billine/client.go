package billine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"billine-gateway/internal/config"
	"billine-gateway/internal/models"
	"billine-gateway/internal/services/tracing"
	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"

	"go.uber.org/zap"
)

// SignatureKey is the field an outgoing request carries its signature under.
const SignatureKey = "sign"

// Doer performs one HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MetricsRecorder receives signing and transport observations
type MetricsRecorder interface {
	RecordSignatureGenerated(algorithm string)
	RecordGatewayRequest(path, outcome string, duration time.Duration)
	RecordCallbackVerification(result string)
}

// Client signs outgoing gateway requests and checks callbacks.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	secret     signing.Secret
	baseURL    string
	merchantID string

	iframePath        string
	payoutPath        string
	iframeAlgorithm   signing.Algorithm
	payoutAlgorithm   signing.Algorithm
	callbackAlgorithm signing.Algorithm

	httpClient Doer
	metrics    MetricsRecorder
	tracer     *tracing.Service
	logger     *zap.Logger
}

// New builds a client with default endpoints, a plain http.Client and no
// instrumentation.
func New(secret signing.Secret, baseURL string) *Client {
	return &Client{
		secret:            secret,
		baseURL:           strings.TrimRight(baseURL, "/"),
		iframePath:        "/api/iframe",
		payoutPath:        "/api/payout",
		iframeAlgorithm:   signing.SHA256,
		payoutAlgorithm:   signing.MD5,
		callbackAlgorithm: signing.SHA256,
		httpClient:        &http.Client{},
		metrics:           noopMetrics{},
		tracer:            tracing.NewNoopService(),
		logger:            zap.NewNop(),
	}
}

// NewClient builds a client from configuration. Nil collaborators fall back to
// the defaults used by New.
func NewClient(cfg config.BillineConfig, httpClient Doer, metrics MetricsRecorder, tracer *tracing.Service, logger *zap.Logger) *Client {
	c := New(cfg.SecretKey, cfg.BaseURL)
	c.merchantID = cfg.MerchantID
	if cfg.IframePath != "" {
		c.iframePath = cfg.IframePath
	}
	if cfg.PayoutPath != "" {
		c.payoutPath = cfg.PayoutPath
	}
	if cfg.IframeAlgorithm != 0 {
		c.iframeAlgorithm = cfg.IframeAlgorithm
	}
	if cfg.PayoutAlgorithm != 0 {
		c.payoutAlgorithm = cfg.PayoutAlgorithm
	}
	if cfg.CallbackAlgorithm != 0 {
		c.callbackAlgorithm = cfg.CallbackAlgorithm
	}
	if httpClient != nil {
		c.httpClient = httpClient
	} else if cfg.HTTPTimeout > 0 {
		c.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if metrics != nil {
		c.metrics = metrics
	}
	if tracer != nil {
		c.tracer = tracer
	}
	if logger != nil {
		c.logger = logger
	}
	return c
}

// MerchantID returns the configured merchant identifier.
func (c *Client) MerchantID() string {
	return c.merchantID
}

// Send signs p with alg, adds the signature under "sign" and issues a GET to
// baseURL+path with the signed JSON object as body. A sign field already
// present on p is ignored and replaced.
func (c *Client) Send(ctx context.Context, path string, p signing.Payload, alg signing.Algorithm) ([]byte, error) {
	ctx, span := c.tracer.StartClientSpan(ctx, "billine.send", map[string]string{
		tracing.AttrPath:      path,
		tracing.AttrAlgorithm: alg.String(),
	})
	defer span.End()

	start := time.Now()
	body, outcome, err := c.send(ctx, path, p, alg)
	c.metrics.RecordGatewayRequest(path, outcome, time.Since(start))
	tracing.AddSpanAttributes(span, map[string]string{tracing.AttrOutcome: outcome})
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.Warn("billine request failed",
			zap.String("path", path),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("billine request sent",
		zap.String("path", path),
		zap.String("algorithm", alg.String()),
		zap.Int("response_bytes", len(body)))
	return body, nil
}

func (c *Client) send(ctx context.Context, path string, p signing.Payload, alg signing.Algorithm) ([]byte, string, error) {
	signature := signing.Sign(p.Fields().Without(SignatureKey), c.secret, alg)
	c.metrics.RecordSignatureGenerated(alg.String())

	body, err := encodeSigned(p, signature)
	if err != nil {
		return nil, "serialization_error", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, "serialization_error", errors.NewSerializationError(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "transport_error", errors.NewTransportError(err, "http request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "transport_error", errors.NewTransportError(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "http_error", errors.NewTransportError(nil, fmt.Sprintf("unexpected status: %d", resp.StatusCode))
	}

	return respBody, "success", nil
}

// encodeSigned renders p's JSON object with the signature added.
func encodeSigned(p signing.Payload, signature string) ([]byte, error) {
	encoded, err := encodeJSON(p)
	if err != nil {
		return nil, errors.NewSerializationError(err, "failed to encode payload")
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &object); err != nil || object == nil {
		return nil, errors.NewSerializationError(err, "payload does not encode to a json object")
	}

	sign, err := json.Marshal(signature)
	if err != nil {
		return nil, errors.NewSerializationError(err, "failed to encode signature")
	}
	object[SignatureKey] = sign

	body, err := encodeJSON(object)
	if err != nil {
		return nil, errors.NewSerializationError(err, "failed to encode signed payload")
	}
	return body, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CreateIframe opens an iframe/h2h payment.
func (c *Client) CreateIframe(ctx context.Context, req *models.RequestIframe) ([]byte, error) {
	return c.Send(ctx, c.iframePath, req, c.iframeAlgorithm)
}

// CreatePayout requests a payout.
func (c *Client) CreatePayout(ctx context.Context, req *models.PayoutRequest) ([]byte, error) {
	return c.Send(ctx, c.payoutPath, req, c.payoutAlgorithm)
}

type signatureKeyer interface {
	SignatureKey() string
}

// VerifyCallback recomputes the signature of p without its signature field
// and compares it with the received one. The field is "sign" unless p names
// its own through SignatureKey.
func (c *Client) VerifyCallback(p signing.Payload) bool {
	key := SignatureKey
	if k, ok := p.(signatureKeyer); ok {
		key = k.SignatureKey()
	}

	fields := p.Fields()
	received, ok := fields.Lookup(key)
	if !ok {
		c.metrics.RecordCallbackVerification("malformed")
		return false
	}
	signature, ok := received.Render()
	if !ok || received.Kind() != signing.KindText {
		c.metrics.RecordCallbackVerification("malformed")
		return false
	}

	valid := signing.Verify(fields.Without(key), c.secret, c.callbackAlgorithm, signature)
	if valid {
		c.metrics.RecordCallbackVerification("valid")
	} else {
		c.metrics.RecordCallbackVerification("mismatch")
	}
	return valid
}

// ParseCallback decodes a raw callback body.
func (c *Client) ParseCallback(raw []byte) (*models.CallbackIframe, error) {
	var cb models.CallbackIframe
	if err := json.Unmarshal(raw, &cb); err != nil {
		if errors.IsDomainError(err) {
			return nil, err
		}
		return nil, errors.NewFormatError("callback", err.Error())
	}
	if err := cb.Validate(); err != nil {
		return nil, errors.NewFormatError("callback", err.Error())
	}
	return &cb, nil
}

// VerifyCallbackIframe returns a SignatureMismatch error when cb's co_sign
// does not match.
func (c *Client) VerifyCallbackIframe(cb *models.CallbackIframe) error {
	if !c.VerifyCallback(cb) {
		return errors.NewSignatureMismatch("co_sign does not match callback contents")
	}
	return nil
}

// ReadCallback parses and verifies a raw callback body.
func (c *Client) ReadCallback(raw []byte) (*models.CallbackIframe, error) {
	cb, err := c.ParseCallback(raw)
	if err != nil {
		return nil, err
	}
	if err := c.VerifyCallbackIframe(cb); err != nil {
		return nil, err
	}
	return cb, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordSignatureGenerated(string)                    {}
func (noopMetrics) RecordGatewayRequest(string, string, time.Duration) {}
func (noopMetrics) RecordCallbackVerification(string)                  {}
