package models

// PaymentIntentHandle is created exactly once per payment flow instance.
// ProviderPaymentID stays empty until the gateway reports a successful
// client-side authorization.
type PaymentIntentHandle struct {
	ClientSecret      string `json:"client_secret"`
	ChargeAmountMinor int64  `json:"charge_amount_minor"`
	CreditAmount      int64  `json:"credit_amount"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
}

// CardDetails carries the client-collected card fields to the gateway SDK.
// The server never logs or stores these.
type CardDetails struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}
