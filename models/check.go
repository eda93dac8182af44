package models

type CheckRequest struct {
	CardType string `json:"card_type"`
	Code     string `json:"code"`
}

type CheckResponse struct {
	Ok        bool   `json:"ok"`
	Status    string `json:"status"` // valid, invalid, used, rate_limited
	Label     string `json:"label"`
	Message   string `json:"message"`
	CardType  string `json:"card_type,omitempty"`
	Balance   int    `json:"balance,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Reference string `json:"reference"`
	CheckedAt string `json:"checked_at"`
}
