package app

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	PinCode string `json:"pinCode"`
	Crop    string `json:"crop"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	msgInvalidPin  = "Please enter a valid 6-digit PIN code."
	msgMissingCrop = "Please enter a crop name."
	msgBadBody     = "Request body must be JSON with pinCode and crop."
)

// HealthStatus is the body of /healthz. Dependencies that are not configured are omitted.
type HealthStatus struct {
	Status          string            `json:"status"` // ok | degraded | down
	Ready           bool              `json:"ready"`
	MQTTConnected   *bool             `json:"mqtt_connected,omitempty"`
	InfluxOK        *bool             `json:"influx_ok,omitempty"`
	LastWriteErrorS float64           `json:"last_write_error_age_sec,omitempty"`
	Breakers        map[string]string `json:"breakers,omitempty"`
}
