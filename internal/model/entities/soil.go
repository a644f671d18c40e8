package entities

// SoilProfile is the predominant soil around a location. WRBTypes are ordered
// by decreasing share; IndianTypes is their mapping onto Indian soil classes.
type SoilProfile struct {
	WRBTypes    []string `json:"wrb_types"`
	IndianTypes []string `json:"indian_types"`
}
