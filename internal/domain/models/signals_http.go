package models

// Requests for the query endpoints. Defined in domain for reuse by handlers and tests.

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SignalRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}

// SignalView is a MarketSignal plus its readiness at query time.
type SignalView struct {
	MarketSignal
	Ready bool `json:"ready"`
}
