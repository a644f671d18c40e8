// Package recommender ranks crops against an observed climate by combining
// climate vector similarity with soil type overlap.
package recommender

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

//go:embed crop_data.csv
var defaultCatalogCSV []byte

const (
	colCrop   = "Crop"
	colTemp   = "Temp (°C)"
	colRain   = "Rain (cm)"
	colRH     = "RH (%)"
	colIndian = "Indian Soil Type"
	colFAO    = "FAO/WRB Soil Type"
)

var ErrEmptyCatalog = errors.New("crop catalog is empty")

// Catalog holds the crops and their scaled climate vectors.
type Catalog struct {
	crops   []entities.Crop
	vectors [][]float64
	scaler  MinMaxScaler
	alias   func(string) string
}

type Option func(*Catalog)

// WithSoilAliases sets the function resolving user soil names (e.g. "regur") to catalog names.
func WithSoilAliases(f func(string) string) Option {
	return func(c *Catalog) {
		if f != nil {
			c.alias = f
		}
	}
}

var builtinAliases = map[string]string{
	"regur": "Black/Regur",
	"black": "Black/Regur",
}

func defaultAlias(s string) string {
	if v, ok := builtinAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v
	}
	return s
}

func DefaultCatalog(opts ...Option) (*Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalogCSV), opts...)
}

// LoadCatalog parses a crop CSV and fits the scaler on its climate columns.
func LoadCatalog(r io.Reader, opts ...Option) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read crop catalog: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyCatalog
	}

	idx := map[string]int{}
	for i, h := range records[0] {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{colCrop, colTemp, colRain, colRH, colIndian, colFAO} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("crop catalog: missing column %q", col)
		}
	}

	c := &Catalog{alias: defaultAlias}
	for _, o := range opts {
		o(c)
	}

	for n, rec := range records[1:] {
		row := n + 2
		get := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		name := get(colCrop)
		if name == "" {
			continue
		}
		lo, hi, ok := MinMax(get(colTemp))
		if !ok {
			return nil, fmt.Errorf("crop catalog row %d (%s): unparsable temperature %q", row, name, get(colTemp))
		}
		rain, ok := ParseRange(get(colRain))
		if !ok {
			return nil, fmt.Errorf("crop catalog row %d (%s): unparsable rain %q", row, name, get(colRain))
		}
		rh, ok := ParseRange(get(colRH))
		if !ok {
			return nil, fmt.Errorf("crop catalog row %d (%s): unparsable humidity %q", row, name, get(colRH))
		}
		c.crops = append(c.crops, entities.Crop{
			Name:        name,
			TempMin:     lo,
			TempMax:     hi,
			RainCm:      rain,
			Humidity:    rh,
			IndianSoils: splitList(get(colIndian)),
			FAOSoils:    splitList(get(colFAO)),
		})
	}
	if len(c.crops) == 0 {
		return nil, ErrEmptyCatalog
	}

	raw := make([][]float64, len(c.crops))
	for i, cr := range c.crops {
		raw[i] = []float64{cr.TempMin, cr.TempMax, cr.RainCm, cr.Humidity}
	}
	c.scaler.Fit(raw)
	c.vectors = make([][]float64, len(raw))
	for i, v := range raw {
		c.vectors[i] = c.scaler.Transform(v)
	}
	return c, nil
}

func (c *Catalog) Crops() []entities.Crop {
	out := make([]entities.Crop, len(c.crops))
	copy(out, c.crops)
	return out
}

// Lookup finds a crop by name, ignoring case; "Jowar" and "Sorghum" both find "Sorghum (Jowar)".
func (c *Catalog) Lookup(name string) (entities.Crop, bool) {
	for _, cr := range c.crops {
		if SameCrop(name, cr.Name) {
			return cr, true
		}
	}
	return entities.Crop{}, false
}

// SameCrop compares a user-supplied crop name with a catalog name.
func SameCrop(query, name string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if q == n {
		return true
	}
	base, local, found := strings.Cut(n, "(")
	if !found {
		return false
	}
	return q == strings.TrimSpace(base) || q == strings.TrimSpace(strings.TrimSuffix(local, ")"))
}
