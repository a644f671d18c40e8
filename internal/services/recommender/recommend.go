package recommender

import (
	"sort"
	"strings"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

const (
	DefaultTopK = 5

	climateWeight = 0.7
	soilWeight    = 0.3
	// each soil system contributes up to a quarter of the soil component
	indianSoilShare = 0.25
	faoSoilShare    = 0.25
)

// Vector converts a climate profile to the unscaled [tmin, tmax, rain, rh] vector.
// Missing values count as zero.
func Vector(p messages.ClimateProfile) []float64 {
	lo, hi, _ := MinMax(p.Temperature)
	rain, _ := ParseRange(p.Precipitation)
	rh, _ := ParseRange(p.Humidity)
	return []float64{lo, hi, rain, rh}
}

// Recommend scores every catalog crop against the profile and returns the best k.
func (c *Catalog) Recommend(p messages.ClimateProfile, k int) []entities.CropScore {
	if k <= 0 {
		k = DefaultTopK
	}
	user := c.scaler.Transform(Vector(p))
	indian := c.normalizeSoils(p.IndianSoilTypes)
	fao := c.normalizeSoils(p.FAOSoilTypes)

	scores := make([]entities.CropScore, len(c.crops))
	for i, cr := range c.crops {
		sim := Cosine(user, c.vectors[i])
		soil := indianSoilShare*soilMatch(indian, cr.IndianSoils) + faoSoilShare*soilMatch(fao, cr.FAOSoils)
		scores[i] = entities.CropScore{Name: cr.Name, Score: climateWeight*sim + soilWeight*soil}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k < len(scores) {
		scores = scores[:k]
	}
	return scores
}

func (c *Catalog) normalizeSoils(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(c.alias(s))); s != "" {
			out[s] = true
		}
	}
	return out
}

// soilMatch is the share of the crop's soils present in the user's soils.
func soilMatch(user map[string]bool, crop []string) float64 {
	if len(crop) == 0 {
		return 0
	}
	n := 0
	for _, s := range crop {
		if user[strings.ToLower(s)] {
			n++
		}
	}
	return float64(n) / float64(len(crop))
}
