package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/internal/services/recommender"
)

const (
	ToolLocation        = "get_location_by_zip"
	ToolWeatherAnalysis = "get_weather_analysis"
	ToolAnalyzeWeather  = "analyze_weather"
	ToolSoilType        = "get_soil_type"
	ToolRecommendCrops  = "recommend_crops"

	DefaultCountry = "IN"
)

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

type tool struct {
	spec ToolSpec
	fn   toolFunc
}

// Toolbox exposes the weather, soil and recommendation operations as model tools.
type Toolbox struct {
	weather WeatherService
	catalog *recommender.Catalog
	country string
	tools   map[string]tool
	order   []string
	logger  *zap.Logger
}

func NewToolbox(ws WeatherService, catalog *recommender.Catalog, country string, logger *zap.Logger) *Toolbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if country == "" {
		country = DefaultCountry
	}
	t := &Toolbox{weather: ws, catalog: catalog, country: country, tools: map[string]tool{}, logger: logger}

	zipParams := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"zip_code":     {Type: "string", Description: "6-digit Indian PIN code"},
			"country_code": {Type: "string", Description: "ISO country code, defaults to IN"},
		},
		Required: []string{"zip_code"},
	}
	coordParams := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"latitude":  {Type: "number"},
			"longitude": {Type: "number"},
		},
		Required: []string{"latitude", "longitude"},
	}

	t.register(ToolLocation, "Get latitude, longitude and city for a PIN code.", zipParams, t.location)
	t.register(ToolWeatherAnalysis,
		"Summarize the past 30 days of weather at a coordinate: temperature range, total rain, mean humidity and soil moisture level.",
		coordParams, t.weatherAnalysis)
	t.register(ToolAnalyzeWeather, "Geocode a PIN code and summarize its past 30 days of weather.", zipParams, t.analyzeWeather)
	t.register(ToolSoilType, "Get the predominant WRB soil types at a coordinate and their Indian soil classes.", coordParams, t.soilType)
	t.register(ToolRecommendCrops, "Rank crops for a climate profile by climate similarity and soil match.", &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"climate_json": {
				Type:        "object",
				Description: "Climate profile",
				Properties: map[string]*Schema{
					"temperature":       {Type: "string", Description: `e.g. "20–30 °C"`},
					"precipitation":     {Type: "string", Description: `e.g. "150 cm"`},
					"humidity":          {Type: "string", Description: `e.g. "70 %"`},
					"indian_soil_types": {Type: "array", Items: &Schema{Type: "string"}},
					"fao_soil_types":    {Type: "array", Items: &Schema{Type: "string"}},
					"soil_moisture":     {Type: "string", Description: "Low, Medium or High"},
				},
				Required: []string{"temperature", "precipitation", "humidity", "indian_soil_types"},
			},
			"top_k": {Type: "integer", Description: "Number of crops to return, default 5"},
		},
		Required: []string{"climate_json"},
	}, t.recommend)
	return t
}

func (t *Toolbox) register(name, desc string, params *Schema, fn toolFunc) {
	t.tools[name] = tool{spec: ToolSpec{Name: name, Description: desc, Parameters: params}, fn: fn}
	t.order = append(t.order, name)
}

// Specs lists the tool declarations in registration order.
func (t *Toolbox) Specs() []ToolSpec {
	out := make([]ToolSpec, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.tools[n].spec)
	}
	return out
}

// Call runs a tool. Failures are reported to the model as {"error": ...}.
func (t *Toolbox) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	tl, ok := t.tools[name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}
	}
	res, err := tl.fn(ctx, args)
	if err != nil {
		t.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return map[string]any{"error": err.Error()}
	}
	m, err := toMap(res)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return m
}

func (t *Toolbox) location(ctx context.Context, args map[string]any) (any, error) {
	loc, err := t.weather.GeocodeZip(ctx, argString(args, "zip_code", ""), argString(args, "country_code", t.country))
	if err != nil {
		return nil, err
	}
	return map[string]any{"latitude": loc.Latitude, "longitude": loc.Longitude, "city": loc.City}, nil
}

func (t *Toolbox) weatherAnalysis(ctx context.Context, args map[string]any) (any, error) {
	lat, lon, err := coords(args)
	if err != nil {
		return nil, err
	}
	return t.weather.Summarize(ctx, lat, lon)
}

func (t *Toolbox) analyzeWeather(ctx context.Context, args map[string]any) (any, error) {
	loc, err := t.weather.GeocodeZip(ctx, argString(args, "zip_code", ""), argString(args, "country_code", t.country))
	if err != nil {
		return nil, err
	}
	s, err := t.weather.Summarize(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}
	s.City = loc.City
	return s, nil
}

func (t *Toolbox) soilType(ctx context.Context, args map[string]any) (any, error) {
	lat, lon, err := coords(args)
	if err != nil {
		return nil, err
	}
	return t.weather.SoilType(ctx, lat, lon)
}

func (t *Toolbox) recommend(_ context.Context, args map[string]any) (any, error) {
	var p messages.ClimateProfile
	switch raw := args["climate_json"].(type) {
	case nil:
		return nil, fmt.Errorf("climate_json is required")
	case string:
		// some models pass the object serialized
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("climate_json: %w", err)
		}
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("climate_json: %w", err)
		}
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("climate_json: %w", err)
		}
	}
	top := t.catalog.Recommend(p, argInt(args, "top_k", recommender.DefaultTopK))
	out := make([]map[string]any, 0, len(top))
	for _, c := range top {
		out = append(out, map[string]any{"crop": c.Name, "similarity": round4(c.Score)})
	}
	return map[string]any{"recommended_crops": out}, nil
}

func coords(args map[string]any) (lat, lon float64, err error) {
	var ok bool
	if lat, ok = argFloat(args, "latitude"); !ok {
		return 0, 0, fmt.Errorf("latitude is required")
	}
	if lon, ok = argFloat(args, "longitude"); !ok {
		return 0, 0, fmt.Errorf("longitude is required")
	}
	return lat, lon, nil
}

func argString(args map[string]any, key, def string) string {
	switch v := args[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return def
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func argInt(args map[string]any, key string, def int) int {
	if f, ok := argFloat(args, key); ok && f > 0 {
		return int(f)
	}
	return def
}

func toMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
