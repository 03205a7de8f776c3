package models

import (
	"billine-gateway/internal/signing"
)

// RequestIframe opens an iframe or host-to-host payment on the gateway.
type RequestIframe struct {
	Merchant   string   `json:"merchant"`
	Order      string   `json:"order"`
	Amount     Amount   `json:"amount"`
	Currency   string   `json:"currency"`
	ItemName   string   `json:"item_name"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	UserID     string   `json:"user_id"`
	PaymentURL string   `json:"payment_url"`
	Country    string   `json:"country"`
	IP         string   `json:"ip"`
	Custom     string   `json:"custom"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	PostCode   string   `json:"post_code"`
	Region     string   `json:"region"`
	Lang       Language `json:"lang"`
	CPF        *string  `json:"cpf"`
}

// Fields lists the request under the same names used by its JSON encoding.
func (r *RequestIframe) Fields() signing.Fields {
	return signing.Fields{
		{Name: "merchant", Value: signing.Text(r.Merchant)},
		{Name: "order", Value: signing.Text(r.Order)},
		{Name: "amount", Value: r.Amount.Value()},
		{Name: "currency", Value: signing.Text(r.Currency)},
		{Name: "item_name", Value: signing.Text(r.ItemName)},
		{Name: "first_name", Value: signing.Text(r.FirstName)},
		{Name: "last_name", Value: signing.Text(r.LastName)},
		{Name: "user_id", Value: signing.Text(r.UserID)},
		{Name: "payment_url", Value: signing.Text(r.PaymentURL)},
		{Name: "country", Value: signing.Text(r.Country)},
		{Name: "ip", Value: signing.Text(r.IP)},
		{Name: "custom", Value: signing.Text(r.Custom)},
		{Name: "email", Value: signing.Text(r.Email)},
		{Name: "phone", Value: signing.Text(r.Phone)},
		{Name: "address", Value: signing.Text(r.Address)},
		{Name: "city", Value: signing.Text(r.City)},
		{Name: "post_code", Value: signing.Text(r.PostCode)},
		{Name: "region", Value: signing.Text(r.Region)},
		{Name: "lang", Value: r.Lang.Value()},
		{Name: "cpf", Value: signing.OptionalText(r.CPF)},
	}
}

// PayoutRequest sends funds to a card or wallet. Payouts are signed with MD5.
type PayoutRequest struct {
	Merchant string `json:"merchant"`
	Method   uint64 `json:"method"`
	PayoutID string `json:"payout_id"`
	Account  string `json:"account"`
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
}

func (r *PayoutRequest) Fields() signing.Fields {
	return signing.Fields{
		{Name: "merchant", Value: signing.Text(r.Merchant)},
		{Name: "method", Value: signing.Uint(r.Method)},
		{Name: "payout_id", Value: signing.Text(r.PayoutID)},
		{Name: "account", Value: signing.Text(r.Account)},
		{Name: "amount", Value: r.Amount.Value()},
		{Name: "currency", Value: signing.Text(r.Currency)},
	}
}
