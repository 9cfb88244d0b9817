package models

import "errors"

// ErrEmptyQuery is returned when a query request carries no query text.
// The HTTP layer maps it to a client error rather than a server fault.
var ErrEmptyQuery = errors.New("query cannot be empty")

// QueryRequest is the body of the query and summary endpoints.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate ensures the request has a query and normalizes top_k.
// A missing or non-positive top_k becomes defaultK; maxK caps it when positive.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = defaultK
	}
	if maxK > 0 && q.TopK > maxK {
		q.TopK = maxK
	}
	return nil
}
