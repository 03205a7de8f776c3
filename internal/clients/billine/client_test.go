package billine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"billine-gateway/internal/config"
	"billine-gateway/internal/models"
	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "SecRetKey0123"

const sampleCallbackJSON = `{
	"co_inv_id": "INV-1001",
	"co_inv_crt": "2024-03-01 10:15:00",
	"co_inv_prc": "2024-03-01 10:16:30",
	"co_inv_st": "success",
	"co_order_no": "ORD-42",
	"co_amount": "150.00",
	"co_to_wlt": null,
	"co_cur": "UAH",
	"co_merchant_id": "M1VJDHSI6DYXS",
	"co_merchant_uuid": "6f1c2a9e-0b7d-4c55-9a63-2d1f3e4b5a60",
	"co_sign": "RfbbKYmbO24aQPIYd+N0A4AMv7A13Vmx/09Iw1YLakM=",
	"co_base_amount": null,
	"co_base_currency": null,
	"co_rate": null
}`

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSignatureGenerated(algorithm string) {
	m.Called(algorithm)
}

func (m *MockMetrics) RecordGatewayRequest(path, outcome string, duration time.Duration) {
	m.Called(path, outcome, duration)
}

func (m *MockMetrics) RecordCallbackVerification(result string) {
	m.Called(result)
}

type capturedRequest struct {
	method      string
	path        string
	contentType string
	body        map[string]any
}

func newGateway(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.contentType = r.Header.Get("Content-Type")
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured.body))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func samplePayout() *models.PayoutRequest {
	return &models.PayoutRequest{
		Merchant: "M1VJDHSI6DYXS",
		Method:   1,
		PayoutID: "000002",
		Account:  "5300111122223333",
		Amount:   models.MustParseAmount("1.19"),
		Currency: "UAH",
	}
}

func sampleIframe() *models.RequestIframe {
	return &models.RequestIframe{
		Merchant:   "M1VJDHSI6DYXS",
		Order:      "ORD-42",
		Amount:     models.MustParseAmount("1250.50"),
		Currency:   "UAH",
		ItemName:   "Premium plan",
		FirstName:  "John",
		LastName:   "Doe",
		UserID:     "USR-7",
		PaymentURL: "https://shop.example.com/pay",
		Country:    "UA",
		IP:         "203.0.113.10",
		Custom:     "promo-7",
		Email:      "test@example.com",
		Phone:      "+380441234567",
		Address:    "12 Main St",
		City:       "Kyiv",
		PostCode:   "01001",
		Region:     "Kyiv region",
		Lang:       models.LanguageUa,
	}
}

func TestClient_CreatePayout_SendsSignedGetWithBody(t *testing.T) {
	server, captured := newGateway(t, http.StatusOK, `{"status":"ok"}`)
	client := New(signing.NewSecret(testSecret), server.URL)

	resp, err := client.CreatePayout(context.Background(), samplePayout())
	require.NoError(t, err)

	assert.Equal(t, `{"status":"ok"}`, string(resp))
	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "/api/payout", captured.path)
	assert.Equal(t, "application/json", captured.contentType)
	assert.Equal(t, "HyTFPDEwJjcnCMmD/AE5wg==", captured.body["sign"])
	assert.Equal(t, "1.19", captured.body["amount"])
	assert.Equal(t, "M1VJDHSI6DYXS", captured.body["merchant"])
	assert.Len(t, captured.body, 7)
}

func TestClient_CreateIframe_UsesSHA256(t *testing.T) {
	server, captured := newGateway(t, http.StatusOK, `{}`)
	client := New(signing.NewSecret(testSecret), server.URL+"/")

	_, err := client.CreateIframe(context.Background(), sampleIframe())
	require.NoError(t, err)

	assert.Equal(t, "/api/iframe", captured.path)
	assert.Equal(t, "QPPE2QPAtKcFoLkx8X1f8/0APzZ0Kzz2Yufppk/w3Ls=", captured.body["sign"])
	assert.Contains(t, captured.body, "cpf")
	assert.Nil(t, captured.body["cpf"])
	assert.Equal(t, "https://shop.example.com/pay", captured.body["payment_url"])
}

func TestClient_Send_ReplacesExistingSign(t *testing.T) {
	server, captured := newGateway(t, http.StatusOK, `{}`)
	client := New(signing.NewSecret(testSecret), server.URL)

	payload, err := signing.FromJSON([]byte(`{"merchant":"M1VJDHSI6DYXS","method":1,"payout_id":"000002","account":"5300111122223333","amount":1.19,"currency":"UAH","sign":"stale"}`))
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "/api/payout", payload, signing.MD5)
	require.NoError(t, err)

	assert.Equal(t, "HyTFPDEwJjcnCMmD/AE5wg==", captured.body["sign"])
	assert.Equal(t, 1.19, captured.body["amount"])
}

func TestClient_Send_Non2xxIsTransportError(t *testing.T) {
	server, _ := newGateway(t, http.StatusBadGateway, `upstream down`)
	client := New(signing.NewSecret(testSecret), server.URL)

	resp, err := client.CreatePayout(context.Background(), samplePayout())

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeTransport))
	assert.Contains(t, err.Error(), "unexpected status: 502")
	assert.NotContains(t, err.Error(), testSecret)

	domainErr, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.True(t, domainErr.Retryable)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestClient_Send_TransportFailure(t *testing.T) {
	metrics := new(MockMetrics)
	metrics.On("RecordSignatureGenerated", "md5").Return()
	metrics.On("RecordGatewayRequest", "/api/payout", "transport_error", mock.AnythingOfType("time.Duration")).Return()

	client := NewClient(config.BillineConfig{
		BaseURL:   "http://billine.invalid",
		SecretKey: signing.NewSecret(testSecret),
	}, failingDoer{}, metrics, nil, zap.NewNop())

	_, err := client.CreatePayout(context.Background(), samplePayout())

	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errors.GetHTTPStatus(err))
	metrics.AssertExpectations(t)
}

func TestClient_Send_RecordsSuccess(t *testing.T) {
	server, _ := newGateway(t, http.StatusOK, `{}`)
	metrics := new(MockMetrics)
	metrics.On("RecordSignatureGenerated", "sha256").Return()
	metrics.On("RecordGatewayRequest", "/custom/iframe", "success", mock.AnythingOfType("time.Duration")).Return()

	client := NewClient(config.BillineConfig{
		BaseURL:    server.URL,
		SecretKey:  signing.NewSecret(testSecret),
		MerchantID: "M1VJDHSI6DYXS",
		IframePath: "/custom/iframe",
	}, nil, metrics, nil, nil)

	_, err := client.CreateIframe(context.Background(), sampleIframe())
	require.NoError(t, err)

	assert.Equal(t, "M1VJDHSI6DYXS", client.MerchantID())
	metrics.AssertExpectations(t)
}

func TestClient_Send_NonObjectPayloadIsSerializationError(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	_, err := client.Send(context.Background(), "/api/payout", scalarPayload{}, signing.MD5)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSerialization))
}

type scalarPayload struct{}

func (scalarPayload) Fields() signing.Fields { return nil }

func (scalarPayload) MarshalJSON() ([]byte, error) { return []byte(`"scalar"`), nil }

func TestClient_ReadCallback_Valid(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	cb, err := client.ReadCallback([]byte(sampleCallbackJSON))
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", cb.InvoiceID)
	assert.Equal(t, models.StatusSuccess, cb.Status)
	assert.True(t, client.VerifyCallback(cb))
}

func TestClient_VerifyCallback_DetectsSingleFieldMutation(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	cb, err := client.ParseCallback([]byte(sampleCallbackJSON))
	require.NoError(t, err)
	amount := models.MustParseAmount("150.01")
	cb.Amount = &amount

	assert.False(t, client.VerifyCallback(cb))
	err = client.VerifyCallbackIframe(cb)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSignatureMismatch))
	assert.Equal(t, http.StatusUnauthorized, errors.GetHTTPStatus(err))
}

func TestClient_VerifyCallback_WrongSecret(t *testing.T) {
	client := New(signing.NewSecret("another"), "http://billine.invalid")

	_, err := client.ReadCallback([]byte(sampleCallbackJSON))

	assert.True(t, errors.HasCode(err, errors.CodeSignatureMismatch))
}

func TestClient_VerifyCallback_GenericPayloadUsesSign(t *testing.T) {
	metrics := new(MockMetrics)
	metrics.On("RecordCallbackVerification", "valid").Return().Once()
	metrics.On("RecordCallbackVerification", "malformed").Return().Once()
	client := NewClient(config.BillineConfig{
		BaseURL:           "http://billine.invalid",
		SecretKey:         signing.NewSecret(testSecret),
		CallbackAlgorithm: signing.MD5,
	}, nil, metrics, nil, nil)

	signed, err := signing.FromJSON([]byte(`{"merchant":"M1VJDHSI6DYXS","method":1,"payout_id":"000002","account":"5300111122223333","amount":1.19,"currency":"UAH","sign":"HyTFPDEwJjcnCMmD/AE5wg=="}`))
	require.NoError(t, err)
	assert.True(t, client.VerifyCallback(signed))

	delete(signed, "sign")
	assert.False(t, client.VerifyCallback(signed))
	metrics.AssertExpectations(t)
}

func TestClient_ParseCallback_FormatErrors(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"unknown status", "co_inv_st", "refunded"},
		{"bad date", "co_inv_prc", "01.03.2024 10:16"},
		{"missing invoice", "co_inv_id", ""},
		{"bad amount", "co_amount", "abc"},
		{"exponent amount", "co_amount", json.Number("1e100000")},
		{"negative exponent rate", "co_rate", json.Number("1e-100000")},
		{"empty merchant uuid", "co_merchant_uuid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var object map[string]any
			require.NoError(t, json.Unmarshal([]byte(sampleCallbackJSON), &object))
			object[tt.field] = tt.value
			raw, err := json.Marshal(object)
			require.NoError(t, err)

			_, err = client.ParseCallback(raw)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeFormat))
			assert.Equal(t, http.StatusBadRequest, errors.GetHTTPStatus(err))
		})
	}

	_, err := client.ParseCallback([]byte(`not json`))
	assert.True(t, errors.HasCode(err, errors.CodeFormat))
}

func TestClient_ParseCallback_MissingRequiredFields(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	for _, field := range []string{"co_inv_crt", "co_inv_prc", "co_merchant_uuid", "co_inv_st", "co_sign"} {
		t.Run(field, func(t *testing.T) {
			var object map[string]any
			require.NoError(t, json.Unmarshal([]byte(sampleCallbackJSON), &object))
			delete(object, field)
			raw, err := json.Marshal(object)
			require.NoError(t, err)

			_, err = client.ParseCallback(raw)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeFormat))
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestClient_ReadCallback_RejectsHugeExponentBeforeVerifying(t *testing.T) {
	metrics := new(MockMetrics)
	client := NewClient(config.BillineConfig{SecretKey: signing.NewSecret(testSecret), BaseURL: "http://billine.invalid"}, nil, metrics, nil, nil)

	raw := strings.Replace(sampleCallbackJSON, `"co_amount": "150.00"`, `"co_amount": 1e100000`, 1)
	require.NotEqual(t, sampleCallbackJSON, raw)

	done := make(chan error, 1)
	go func() {
		_, err := client.ReadCallback([]byte(raw))
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeFormat))
	case <-time.After(2 * time.Second):
		t.Fatal("callback with an exponent amount was not rejected promptly")
	}
	metrics.AssertNotCalled(t, "RecordCallbackVerification", mock.Anything)
}

func TestClient_NeverPrintsSecret(t *testing.T) {
	client := New(signing.NewSecret(testSecret), "http://billine.invalid")

	assert.NotContains(t, fmt.Sprintf("%v", client), testSecret)
	assert.NotContains(t, fmt.Sprintf("%+v", client), testSecret)
	assert.NotContains(t, fmt.Sprintf("%#v", client), testSecret)
	assert.NotContains(t, fmt.Sprintf("%+v", *client), testSecret)
}
