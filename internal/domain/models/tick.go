package models

// MarketTick is the normalized market data payload.
type MarketTick struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	Timestamp  string  `json:"timestamp"`
	ExchangeID string  `json:"exchange_id"`
}

// SentimentUpdate is the analyzed sentiment payload.
type SentimentUpdate struct {
	Symbol         string  `json:"symbol"`
	SentimentScore float64 `json:"sentiment_score"`
}

// OnChainEvent carries on-chain activity for a symbol. Non-numeric values are dropped at ingest.
type OnChainEvent struct {
	Symbol   string                 `json:"symbol"`
	Activity map[string]interface{} `json:"activity"`
}
