package messages

// ClimateProfile is the intermediate summary handed to the crop recommender.
// Values are human-readable strings ("20–30 °C", "150 cm", "60–80 %") because
// the agent produces them as text.
type ClimateProfile struct {
	Temperature     string   `json:"temperature"`
	Precipitation   string   `json:"precipitation"`
	Humidity        string   `json:"humidity"`
	IndianSoilTypes []string `json:"indian_soil_types"`
	FAOSoilTypes    []string `json:"fao_soil_types,omitempty"`
	SoilMoisture    string   `json:"soil_moisture"`
}
