// Package advisor turns a PIN code and a crop name into an analysis report,
// either through a function-calling model or a deterministic pipeline.
package advisor

import (
	"context"
	"math"
	"strconv"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

// WeatherService is the data side of an analysis, implemented by weather.Client.
type WeatherService interface {
	GeocodeZip(ctx context.Context, pin, country string) (entities.Location, error)
	Summarize(ctx context.Context, lat, lon float64) (entities.WeatherSummary, error)
	SoilType(ctx context.Context, lat, lon float64) (entities.SoilProfile, error)
}

// Analyzer produces a report for a crop at a PIN code.
type Analyzer interface {
	Run(ctx context.Context, pin, crop string) (messages.AnalysisReport, error)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

// Profile builds the recommender input from the observed weather and soil.
func Profile(w entities.WeatherSummary, s entities.SoilProfile) messages.ClimateProfile {
	return messages.ClimateProfile{
		Temperature:     num(w.TempMin) + "–" + num(w.TempMax) + " °C",
		Precipitation:   num(w.RainCm) + " cm",
		Humidity:        num(w.HumidityAvg) + " %",
		IndianSoilTypes: s.IndianTypes,
		FAOSoilTypes:    s.WRBTypes,
		SoilMoisture:    string(w.SoilMoisture),
	}
}

func reportFrom(p messages.ClimateProfile, top []entities.CropScore, suit messages.CropSuitability) messages.AnalysisReport {
	r := messages.AnalysisReport{
		Weather: messages.WeatherView{
			Temperature:   p.Temperature,
			Precipitation: p.Precipitation,
			Humidity:      p.Humidity,
		},
		Soil: messages.SoilView{
			IndianTypes: p.IndianSoilTypes,
			Moisture:    p.SoilMoisture,
		},
		RecommendedCrops: make([]messages.ScoredCrop, 0, len(top)),
		CropSuitability:  suit,
	}
	if r.Soil.IndianTypes == nil {
		r.Soil.IndianTypes = []string{}
	}
	for _, c := range top {
		r.RecommendedCrops = append(r.RecommendedCrops, messages.ScoredCrop{Name: c.Name, Score: round4(c.Score)})
	}
	r.CropSuitability.Score = round4(suit.Score)
	return r
}
