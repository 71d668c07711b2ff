package model

import "time"

// Status is the outcome of processing one image or text.
type Status string

// Processing outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the envelope returned for every processed image: either a
// complete record or an explicit failure, never a partial structure.
type Result struct {
	ProcessedAt  time.Time         `json:"processed_at"`
	Record       *LedgerRecord     `json:"record,omitempty"`
	Fused        *FusedResult      `json:"fused,omitempty"`
	EngineErrors map[string]string `json:"engine_errors,omitempty"`
	ID           string            `json:"id"`
	Status       Status            `json:"status"`
	Error        string            `json:"error,omitempty"`
	Confidence   float64           `json:"confidence"`
	NeedsReview  bool              `json:"needs_review"`
}

// Failed builds a failure envelope.
func Failed(id, message string) Result {
	return Result{
		ID:          id,
		Status:      StatusFailed,
		Error:       message,
		NeedsReview: true,
		ProcessedAt: time.Now(),
	}
}
