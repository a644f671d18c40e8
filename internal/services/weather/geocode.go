package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

type owmZip struct {
	Zip     string  `json:"zip"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// GeocodeZip resolves a postal code through the OpenWeatherMap geocoding API.
func (c *Client) GeocodeZip(ctx context.Context, pin, country string) (entities.Location, error) {
	if err := entities.ValidatePin(pin); err != nil {
		return entities.Location{}, err
	}
	if c.apiKey == "" {
		return entities.Location{}, ErrMissingAPIKey
	}
	if country == "" {
		country = "IN"
	}

	q := url.Values{}
	q.Set("zip", pin+","+country)
	q.Set("appid", c.apiKey)
	body, err := c.geocode.Get(ctx, c.geocodeURL+"/geo/1.0/zip?"+q.Encode())
	if err != nil {
		return entities.Location{}, fmt.Errorf("failed to fetch coordinates: %w", err)
	}

	var out owmZip
	if err := json.Unmarshal(body, &out); err != nil {
		return entities.Location{}, fmt.Errorf("decode geocoding response: %w", err)
	}
	if out.Lat == 0 && out.Lon == 0 {
		return entities.Location{}, fmt.Errorf("geocoding %s: %w", pin, ErrNoData)
	}
	c.logger.Debug("geocoded", zap.String("pin", pin), zap.String("city", out.Name),
		zap.Float64("lat", out.Lat), zap.Float64("lon", out.Lon))

	return entities.Location{
		PinCode:   pin,
		Country:   country,
		Latitude:  out.Lat,
		Longitude: out.Lon,
		City:      out.Name,
	}, nil
}
