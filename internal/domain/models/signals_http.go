package models

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type DailySignalRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"utf8,max=12"`
	Index  string `query:"index" json:"index" default:"S&P 500" validate:"utf8,max=32"`
}

// Blank text is rejected by the use case with 422, not here.
type SocialSignalRequest struct {
	Text string `json:"text" form:"text" validate:"utf8,max=2000"`
}

type HistoryRequest struct {
	Target string `query:"target" json:"target" validate:"required,utf8,max=32"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Since  string `query:"since" json:"since"`
}
