package models

// Plan is an immutable credit-pack catalog entry. PriceMinor is the charge
// amount in the currency's minor unit (yen are their own minor unit).
type Plan struct {
	ID         int    `json:"id" dynamodbav:"id"`
	Name       string `json:"name" dynamodbav:"name"`
	PriceMinor int64  `json:"price_minor" dynamodbav:"price_minor"`
	Credits    int64  `json:"credits" dynamodbav:"credits"`
	Active     bool   `json:"active" dynamodbav:"active"`
}
