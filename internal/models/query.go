package models

import "fmt"

// MaxK caps the number of results a single request may ask for.
const MaxK = 100

// RetrieveRequest is a retrieval request from the CLI or HTTP API.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate checks the request and fills defaults. A zero K becomes defaultK; negative K is rejected.
func (r *RetrieveRequest) Validate(defaultK int) error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K < 0 {
		return fmt.Errorf("k must be >= 1, got %d", r.K)
	}
	if r.K == 0 {
		r.K = defaultK
	}
	if r.K < 1 {
		r.K = 1
	}
	if r.K > MaxK {
		r.K = MaxK
	}
	return nil
}
