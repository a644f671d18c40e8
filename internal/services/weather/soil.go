package weather

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

//go:embed soil_mapping.yaml
var defaultSoilMapping []byte

// SoilMapping translates WRB soil groups into Indian soil classes.
type SoilMapping struct {
	Aliases map[string]string   `yaml:"aliases"`
	Groups  map[string][]string `yaml:"groups"`

	groups map[string][]string // lowercased keys
}

func LoadSoilMapping(r io.Reader) (*SoilMapping, error) {
	var m SoilMapping
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode soil mapping: %w", err)
	}
	if len(m.Groups) == 0 {
		return nil, fmt.Errorf("soil mapping has no groups")
	}
	m.groups = make(map[string][]string, len(m.Groups))
	for k, v := range m.Groups {
		m.groups[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &m, nil
}

func DefaultSoilMapping() *SoilMapping {
	m, err := LoadSoilMapping(strings.NewReader(string(defaultSoilMapping)))
	if err != nil {
		panic(err)
	}
	return m
}

// Indian maps WRB groups to Indian classes, keeping first-seen order without duplicates.
func (m *SoilMapping) Indian(wrb []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, w := range wrb {
		for _, in := range m.groups[strings.ToLower(strings.TrimSpace(w))] {
			if !seen[in] {
				seen[in] = true
				out = append(out, in)
			}
		}
	}
	return out
}

// Canonical resolves an alias ("regur", "black") to its catalog spelling.
func (m *SoilMapping) Canonical(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if v, ok := m.Aliases[k]; ok {
		return v
	}
	return strings.TrimSpace(name)
}

type soilSummary struct {
	Properties struct {
		Summaries []struct {
			SoilType string  `json:"soil_type"`
			Count    float64 `json:"count"`
		} `json:"summaries"`
	} `json:"properties"`
}

// SoilType returns the soil groups found in a ±0.01° box around the point,
// most frequent first.
func (c *Client) SoilType(ctx context.Context, lat, lon float64) (entities.SoilProfile, error) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	q := url.Values{}
	q.Set("min_lon", f(lon-0.01))
	q.Set("max_lon", f(lon+0.01))
	q.Set("min_lat", f(lat-0.01))
	q.Set("max_lat", f(lat+0.01))

	body, err := c.soil.Get(ctx, c.soilURL+"/soil/type/summary?"+q.Encode())
	if err != nil {
		return entities.SoilProfile{}, fmt.Errorf("failed to fetch soil type: %w", err)
	}
	var out soilSummary
	if err := json.Unmarshal(body, &out); err != nil {
		return entities.SoilProfile{}, fmt.Errorf("decode soil response: %w", err)
	}

	sums := out.Properties.Summaries
	sort.SliceStable(sums, func(i, j int) bool { return sums[i].Count > sums[j].Count })
	wrb := make([]string, 0, len(sums))
	for _, s := range sums {
		if s.Count > 0 && strings.TrimSpace(s.SoilType) != "" {
			wrb = append(wrb, s.SoilType)
		}
	}
	if len(wrb) == 0 {
		return entities.SoilProfile{}, fmt.Errorf("soil type: %w", ErrNoData)
	}

	p := entities.SoilProfile{WRBTypes: wrb, IndianTypes: c.mapping.Indian(wrb)}
	c.logger.Debug("soil profile", zap.Strings("wrb", p.WRBTypes), zap.Strings("indian", p.IndianTypes))
	return p, nil
}
