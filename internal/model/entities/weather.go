package entities

// MoistureLevel buckets volumetric soil moisture.
type MoistureLevel string

const (
	MoistureLow       MoistureLevel = "Low"
	MoistureLowMedium MoistureLevel = "Low–Medium"
	MoistureMedium    MoistureLevel = "Medium"
	MoistureModHigh   MoistureLevel = "Mod–High"
	MoistureHigh      MoistureLevel = "High"
)

// ClassifyMoisture maps a mean volumetric water content (m³/m³) to a level.
func ClassifyMoisture(avg float64) MoistureLevel {
	switch {
	case avg < 0.2:
		return MoistureLow
	case avg < 0.4:
		return MoistureMedium
	default:
		return MoistureHigh
	}
}

// Value returns the level on a 0..1 scale; unknown levels count as Medium.
func (m MoistureLevel) Value() float64 {
	switch m {
	case MoistureLow:
		return 0
	case MoistureLowMedium:
		return 0.25
	case MoistureMedium:
		return 0.5
	case MoistureModHigh:
		return 0.75
	case MoistureHigh:
		return 1
	default:
		return 0.5
	}
}

// WeatherSummary aggregates the hourly series of the observation window.
type WeatherSummary struct {
	City            string        `json:"city,omitempty"`
	TempMin         float64       `json:"temp_min"` // °C
	TempMax         float64       `json:"temp_max"` // °C
	RainCm          float64       `json:"rain_cm"`  // total over the window
	HumidityAvg     float64       `json:"rh_avg"`   // %
	SoilMoisture    MoistureLevel `json:"soil_moisture"`
	SoilMoistureAvg float64       `json:"soil_moisture_avg"` // m³/m³
	Hours           int           `json:"hours"`
}
