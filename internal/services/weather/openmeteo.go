package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

var soilMoistureVars = []string{
	"soil_moisture_0_to_1cm",
	"soil_moisture_3_to_9cm",
	"soil_moisture_9_to_27cm",
	"soil_moisture_27_to_81cm",
}

type meteoResp struct {
	Latitude  float64               `json:"latitude"`
	Longitude float64               `json:"longitude"`
	Hourly    map[string][]*float64 `json:"-"`
	Time      []string              `json:"-"`
}

func (m *meteoResp) UnmarshalJSON(b []byte) error {
	var raw struct {
		Latitude  float64                    `json:"latitude"`
		Longitude float64                    `json:"longitude"`
		Hourly    map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Latitude, m.Longitude = raw.Latitude, raw.Longitude
	m.Hourly = make(map[string][]*float64, len(raw.Hourly))
	for k, v := range raw.Hourly {
		if k == "time" {
			if err := json.Unmarshal(v, &m.Time); err != nil {
				return fmt.Errorf("hourly.time: %w", err)
			}
			continue
		}
		var series []*float64
		if err := json.Unmarshal(v, &series); err != nil {
			return fmt.Errorf("hourly.%s: %w", k, err)
		}
		m.Hourly[k] = series
	}
	return nil
}

func (c *Client) meteoQuery(lat, lon float64) string {
	hourly := append([]string{"temperature_2m"}, soilMoistureVars...)
	hourly = append(hourly, "precipitation", "relative_humidity_2m")

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("hourly", strings.Join(hourly, ","))
	q.Set("past_days", strconv.Itoa(c.pastDays))
	q.Set("timezone", "UTC")
	return c.meteoURL + "/v1/forecast?" + q.Encode()
}

// Summarize fetches the hourly Open-Meteo series for the past days and reduces
// it to min/max temperature, total rain, mean humidity and a soil moisture level.
func (c *Client) Summarize(ctx context.Context, lat, lon float64) (entities.WeatherSummary, error) {
	body, err := c.meteo.Get(ctx, c.meteoQuery(lat, lon))
	if err != nil {
		return entities.WeatherSummary{}, fmt.Errorf("failed to fetch weather data: %w", err)
	}
	var resp meteoResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return entities.WeatherSummary{}, fmt.Errorf("decode weather response: %w", err)
	}

	s, err := summarize(resp)
	if err != nil {
		return entities.WeatherSummary{}, err
	}
	c.logger.Debug("weather summary",
		zap.Float64("lat", lat), zap.Float64("lon", lon),
		zap.Int("hours", s.Hours), zap.Float64("soil_moisture_avg", s.SoilMoistureAvg),
		zap.String("soil_moisture", string(s.SoilMoisture)))
	return s, nil
}

// Analyze geocodes the PIN code and summarizes the weather at its coordinates.
func (c *Client) Analyze(ctx context.Context, pin, country string) (entities.WeatherSummary, entities.Location, error) {
	loc, err := c.GeocodeZip(ctx, pin, country)
	if err != nil {
		return entities.WeatherSummary{}, entities.Location{}, err
	}
	s, err := c.Summarize(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return entities.WeatherSummary{}, loc, err
	}
	s.City = loc.City
	return s, loc, nil
}

func summarize(resp meteoResp) (entities.WeatherSummary, error) {
	temp := values(resp.Hourly["temperature_2m"])
	if len(temp) == 0 {
		return entities.WeatherSummary{}, fmt.Errorf("temperature series: %w", ErrNoData)
	}
	tmin, tmax := math.Inf(1), math.Inf(-1)
	for _, v := range temp {
		tmin = math.Min(tmin, v)
		tmax = math.Max(tmax, v)
	}

	var rainMM float64
	for _, v := range values(resp.Hourly["precipitation"]) {
		rainMM += v
	}

	rh, _ := mean(values(resp.Hourly["relative_humidity_2m"]))

	// mean of the per-depth means; depths with no data are skipped
	var sum float64
	var depths int
	for _, k := range soilMoistureVars {
		if m, ok := mean(values(resp.Hourly[k])); ok {
			sum += m
			depths++
		}
	}
	var moist float64
	if depths > 0 {
		moist = sum / float64(depths)
	}

	return entities.WeatherSummary{
		TempMin:         round2(tmin),
		TempMax:         round2(tmax),
		RainCm:          round2(rainMM / 10),
		HumidityAvg:     round2(rh),
		SoilMoisture:    entities.ClassifyMoisture(moist),
		SoilMoistureAvg: round2(moist),
		Hours:           len(temp),
	}, nil
}

func values(series []*float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}

func mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs)), true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
