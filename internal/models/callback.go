package models

import (
	"fmt"

	"billine-gateway/internal/signing"
)

// CallbackSignatureKey is the field carrying the gateway's signature on a
// callback.
const CallbackSignatureKey = "co_sign"

// CallbackIframe is the notification the gateway posts when an iframe/h2h
// invoice reaches a final state.
type CallbackIframe struct {
	InvoiceID      string    `json:"co_inv_id"`
	InvoiceCreated Timestamp `json:"co_inv_crt"`
	InvoicePaid    Timestamp `json:"co_inv_prc"`
	Status         Status    `json:"co_inv_st"`
	OrderNo        string    `json:"co_order_no"`
	Amount         *Amount   `json:"co_amount"`
	ToWallet       *Amount   `json:"co_to_wlt"`
	Currency       *string   `json:"co_cur"`
	MerchantID     string    `json:"co_merchant_id"`
	MerchantUUID   string    `json:"co_merchant_uuid"`
	Sign           string    `json:"co_sign"`
	BaseAmount     *Amount   `json:"co_base_amount"`
	BaseCurrency   *string   `json:"co_base_currency"`
	Rate           *Amount   `json:"co_rate"`
}

// Fields lists every callback field, co_sign included.
func (c *CallbackIframe) Fields() signing.Fields {
	return signing.Fields{
		{Name: "co_inv_id", Value: signing.Text(c.InvoiceID)},
		{Name: "co_inv_crt", Value: c.InvoiceCreated.Value()},
		{Name: "co_inv_prc", Value: c.InvoicePaid.Value()},
		{Name: "co_inv_st", Value: c.Status.Value()},
		{Name: "co_order_no", Value: signing.Text(c.OrderNo)},
		{Name: "co_amount", Value: optionalAmount(c.Amount)},
		{Name: "co_to_wlt", Value: optionalAmount(c.ToWallet)},
		{Name: "co_cur", Value: signing.OptionalText(c.Currency)},
		{Name: "co_merchant_id", Value: signing.Text(c.MerchantID)},
		{Name: "co_merchant_uuid", Value: signing.Text(c.MerchantUUID)},
		{Name: CallbackSignatureKey, Value: signing.Text(c.Sign)},
		{Name: "co_base_amount", Value: optionalAmount(c.BaseAmount)},
		{Name: "co_base_currency", Value: signing.OptionalText(c.BaseCurrency)},
		{Name: "co_rate", Value: optionalAmount(c.Rate)},
	}
}

func (c *CallbackIframe) SignatureKey() string {
	return CallbackSignatureKey
}

// Validate checks the fields the gateway always sends.
func (c *CallbackIframe) Validate() error {
	if c.InvoiceID == "" {
		return fmt.Errorf("co_inv_id is required")
	}
	if c.OrderNo == "" {
		return fmt.Errorf("co_order_no is required")
	}
	if c.MerchantID == "" {
		return fmt.Errorf("co_merchant_id is required")
	}
	if c.Sign == "" {
		return fmt.Errorf("co_sign is required")
	}
	if c.Status == "" {
		return fmt.Errorf("co_inv_st is required")
	}
	if c.InvoiceCreated.IsZero() {
		return fmt.Errorf("co_inv_crt is required")
	}
	if c.InvoicePaid.IsZero() {
		return fmt.Errorf("co_inv_prc is required")
	}
	if c.MerchantUUID == "" {
		return fmt.Errorf("co_merchant_uuid is required")
	}
	return nil
}
