package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/internal/services/recommender"
)

// InsightInput is everything known about an analysis before the insights are written.
type InsightInput struct {
	Location entities.Location
	Weather  entities.WeatherSummary
	Soil     entities.SoilProfile
	Report   messages.AnalysisReport
}

// Insighter explains why a crop is or is not suitable.
type Insighter interface {
	Insights(ctx context.Context, in InsightInput) (string, error)
}

// TemplateInsighter writes insights from the report and the catalog ranges.
type TemplateInsighter struct {
	Catalog *recommender.Catalog
}

const humidityTolerance = 15.0

func (t TemplateInsighter) Insights(_ context.Context, in InsightInput) (string, error) {
	s := in.Report.CropSuitability
	w := in.Weather
	place := in.Location.City
	if place == "" {
		place = "PIN " + in.Location.PinCode
	}

	var out []string
	switch {
	case s.Rank > 0 && s.Score > recommender.SuitableScore:
		out = append(out, fmt.Sprintf("%s is a good choice for %s: it ranks #%d among the recommended crops with a score of %.2f.",
			s.CropName, place, s.Rank, s.Score))
	case s.Rank > 0:
		out = append(out, fmt.Sprintf("%s ranks #%d for %s but its score of %.2f is a weak match.",
			s.CropName, s.Rank, place, s.Score))
	default:
		out = append(out, fmt.Sprintf("%s is not among the top %d crops for %s.",
			s.CropName, len(in.Report.RecommendedCrops), place))
	}

	out = append(out, fmt.Sprintf("Over the past 30 days temperatures ranged from %s to %s °C with %s cm of rain and %s %% average humidity; soil moisture is %s.",
		num(w.TempMin), num(w.TempMax), num(w.RainCm), num(w.HumidityAvg), strings.ToLower(string(w.SoilMoisture))))

	var crop entities.Crop
	known := false
	if t.Catalog != nil {
		crop, known = t.Catalog.Lookup(s.CropName)
	}
	if known {
		if w.TempMax > crop.TempMax {
			out = append(out, fmt.Sprintf("Peaks of %s °C exceed the %s °C it tolerates.", num(w.TempMax), num(crop.TempMax)))
		}
		if w.TempMin < crop.TempMin {
			out = append(out, fmt.Sprintf("Lows of %s °C fall below its %s °C minimum.", num(w.TempMin), num(crop.TempMin)))
		}
		if d := w.HumidityAvg - crop.Humidity; math.Abs(d) > humidityTolerance {
			dir := "above"
			if d < 0 {
				dir = "below"
			}
			out = append(out, fmt.Sprintf("Humidity is well %s the ~%s %% it prefers.", dir, num(crop.Humidity)))
		}
		if len(in.Soil.IndianTypes) > 0 && len(crop.IndianSoils) > 0 && !overlaps(in.Soil.IndianTypes, crop.IndianSoils) {
			out = append(out, fmt.Sprintf("It prefers %s soils while the area has mostly %s.",
				joinList(crop.IndianSoils), joinList(in.Soil.IndianTypes)))
		}
	} else {
		out = append(out, fmt.Sprintf("%s is not in the crop catalog, so it could not be scored.", s.CropName))
	}

	var others []string
	for _, a := range s.Alternatives {
		if !recommender.SameCrop(s.CropName, a) {
			others = append(others, a)
		}
	}
	if len(others) > 0 {
		out = append(out, fmt.Sprintf("Better options here: %s.", joinList(others)))
	}
	return strings.Join(out, " "), nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func joinList(xs []string) string {
	switch len(xs) {
	case 0:
		return ""
	case 1:
		return xs[0]
	default:
		return strings.Join(xs[:len(xs)-1], ", ") + " and " + xs[len(xs)-1]
	}
}

// ModelInsighter asks the model for insights and falls back when it fails.
type ModelInsighter struct {
	model    Model
	fallback Insighter
	logger   *zap.Logger
}

func NewModelInsighter(model Model, fallback Insighter, logger *zap.Logger) *ModelInsighter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelInsighter{model: model, fallback: fallback, logger: logger}
}

const insightPrompt = `Here is a crop analysis for %s (PIN %s), based on the past 30 days of weather and the local soil:
%s

In at most five sentences, explain why %s is suitable or not here and what could be better for the crop. Answer in plain text.`

func (m *ModelInsighter) Insights(ctx context.Context, in InsightInput) (string, error) {
	data, err := json.MarshalIndent(struct {
		Weather entities.WeatherSummary `json:"weather"`
		Soil    entities.SoilProfile    `json:"soil"`
		Report  messages.AnalysisReport `json:"analysis"`
	}{in.Weather, in.Soil, in.Report}, "", "  ")
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(insightPrompt, in.Location.City, in.Location.PinCode, data, in.Report.CropSuitability.CropName)
	resp, err := m.model.Generate(ctx, ModelRequest{
		System:  systemPrompt,
		History: []Turn{{Role: RoleUser, Text: prompt}},
	})
	if err == nil {
		if text := strings.TrimSpace(resp.Text); text != "" {
			return text, nil
		}
		err = fmt.Errorf("empty answer")
	}
	if m.fallback == nil {
		return "", fmt.Errorf("model insights: %w", err)
	}
	m.logger.Warn("model insights failed, using fallback", zap.Error(err))
	return m.fallback.Insights(ctx, in)
}
