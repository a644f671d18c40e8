package messages

import "time"

// AnalysisRequest asks for an analysis of a crop at a PIN code. It arrives
// over HTTP or on the MQTT request topic.
type AnalysisRequest struct {
	RequestID string `json:"request_id"`
	PinCode   string `json:"pin_code"`
	Crop      string `json:"crop"`
}

const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// AnalysisCompletedEvent is published once an analysis finished, successfully or not.
type AnalysisCompletedEvent struct {
	RequestID string          `json:"request_id"`
	PinCode   string          `json:"pin_code"`
	Crop      string          `json:"crop"`
	Status    string          `json:"status"` // OK | FAIL
	Report    *AnalysisReport `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Timestamp time.Time       `json:"timestamp"`
}
