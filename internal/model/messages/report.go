package messages

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnalysisReport is the response of an analysis, as returned by POST /analyze.
type AnalysisReport struct {
	Weather          WeatherView     `json:"weather"`
	Soil             SoilView        `json:"soil"`
	RecommendedCrops []ScoredCrop    `json:"recommendedCrops"`
	CropSuitability  CropSuitability `json:"cropSuitability"`
	Insights         string          `json:"insights"`
}

type WeatherView struct {
	Temperature   string `json:"temperature"`
	Precipitation string `json:"precipitation"`
	Humidity      string `json:"humidity"`
}

type SoilView struct {
	IndianTypes []string `json:"indianTypes"`
	Moisture    string   `json:"moisture"`
}

type ScoredCrop struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type CropSuitability struct {
	CropName     string   `json:"cropName"`
	Score        float64  `json:"score"`
	Rank         Rank     `json:"rank"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Rank is a 1-based position in the recommendation list. Zero means the crop
// is not ranked and encodes as "N/A".
type Rank int

const NotRanked Rank = 0

func (r Rank) String() string {
	if r <= 0 {
		return "N/A"
	}
	return strconv.Itoa(int(r))
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if r <= 0 {
		return []byte(`"N/A"`), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalJSON accepts a number, a numeric string or "N/A".
func (r *Rank) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*r = NotRanked
	case float64:
		*r = Rank(int(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "N/A") {
			*r = NotRanked
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("rank: %q is not a number", x)
		}
		*r = Rank(n)
	default:
		return fmt.Errorf("rank: unexpected %T", v)
	}
	return nil
}
