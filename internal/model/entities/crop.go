package entities

// Crop is one row of the crop catalog with its preferred growing conditions.
type Crop struct {
	Name        string   `json:"name"`
	TempMin     float64  `json:"temp_min"`
	TempMax     float64  `json:"temp_max"`
	RainCm      float64  `json:"rain_cm"`
	Humidity    float64  `json:"humidity"`
	IndianSoils []string `json:"indian_soils"`
	FAOSoils    []string `json:"fao_soils"`
}

// CropScore is a crop with its suitability score for a climate profile.
type CropScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
