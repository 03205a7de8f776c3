package models

import (
	"fmt"
	"time"
)

// EventTypeCallbackReceived is published once per verified, first-seen callback.
const EventTypeCallbackReceived = "billine.callback.received"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Traceparent string    `json:"traceparent"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ValidateBaseEvent validates common event fields
func (e *BaseEvent) ValidateBaseEvent() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Traceparent == "" {
		return fmt.Errorf("traceparent is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// CallbackReceivedEvent carries a verified callback to downstream consumers.
// The gateway signature is not forwarded.
type CallbackReceivedEvent struct {
	BaseEvent
	InvoiceID   string    `json:"invoice_id"`
	OrderNo     string    `json:"order_no"`
	Status      Status    `json:"status"`
	Amount      *Amount   `json:"amount,omitempty"`
	Currency    *string   `json:"currency,omitempty"`
	MerchantID  string    `json:"merchant_id"`
	InvoicePaid Timestamp `json:"invoice_paid"`
}

// NewCallbackReceivedEvent builds the event for cb.
func NewCallbackReceivedEvent(cb *CallbackIframe, eventID, traceparent, traceID string, now time.Time) *CallbackReceivedEvent {
	return &CallbackReceivedEvent{
		BaseEvent: BaseEvent{
			EventType:   EventTypeCallbackReceived,
			EventID:     eventID,
			Traceparent: traceparent,
			TraceID:     traceID,
			Timestamp:   now,
		},
		InvoiceID:   cb.InvoiceID,
		OrderNo:     cb.OrderNo,
		Status:      cb.Status,
		Amount:      cb.Amount,
		Currency:    cb.Currency,
		MerchantID:  cb.MerchantID,
		InvoicePaid: cb.InvoicePaid,
	}
}

// Validate validates CallbackReceivedEvent
func (e *CallbackReceivedEvent) Validate() error {
	if err := e.ValidateBaseEvent(); err != nil {
		return err
	}
	if e.InvoiceID == "" {
		return fmt.Errorf("invoice_id is required")
	}
	if e.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}
