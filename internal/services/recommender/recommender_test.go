package recommender

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

const testCatalog = `Crop,Temp (°C),Rain (cm),RH (%),Indian Soil Type,FAO/WRB Soil Type
A,10–20,100,50,"Alluvial","Fluvisols"
B,20–30,200,70,"Black/Regur, Clay","Vertisols"
C,30–40,300,90,"Red","Luvisols"
`

func TestNumbers(t *testing.T) {
	assert.Equal(t, []float64{20, 30}, Numbers("20–30 °C"))
	assert.Equal(t, []float64{20, 30}, Numbers("20-30"))
	assert.Equal(t, []float64{12.5, 14.5}, Numbers("12.5 - 14.5 cm"))
	assert.Equal(t, []float64{-5, 10}, Numbers("-5–10"))
	assert.Equal(t, []float64{-5, 10}, Numbers("-5 to 10 °C"))
	assert.Empty(t, Numbers("Medium"))
}

func TestParseRange(t *testing.T) {
	v, ok := ParseRange("150–300 cm")
	require.True(t, ok)
	assert.Equal(t, 225.0, v)

	v, ok = ParseRange("150 cm")
	require.True(t, ok)
	assert.Equal(t, 150.0, v)

	_, ok = ParseRange("n/a")
	assert.False(t, ok)
}

func TestMinMax(t *testing.T) {
	lo, hi, ok := MinMax("18 °C")
	require.True(t, ok)
	assert.Equal(t, 18.0, lo)
	assert.Equal(t, 18.0, hi)

	_, _, ok = MinMax("")
	assert.False(t, ok)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("Crop,Temp (°C)\nRice,20–30\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = LoadCatalog(strings.NewReader(strings.SplitN(testCatalog, "\n", 2)[0] + "\n"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	bad := strings.Replace(testCatalog, "10–20", "warm", 1)
	_, err = LoadCatalog(strings.NewReader(bad))
	assert.ErrorContains(t, err, "row 2 (A)")
}

func TestCatalog_Recommend(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)

	top := c.Recommend(messages.ClimateProfile{
		Temperature:     "20–30 °C",
		Precipitation:   "200 cm",
		Humidity:        "70 %",
		IndianSoilTypes: []string{"regur", "Regur"},
		FAOSoilTypes:    []string{"Vertisols"},
		SoilMoisture:    "Medium",
	}, 0)

	require.Len(t, top, 3)
	assert.Equal(t, "B", top[0].Name)
	// similarity 1, soil 0.25*1/2 + 0.25*1
	assert.InDelta(t, 0.7+0.3*0.375, top[0].Score, 1e-9)
	assert.Equal(t, "C", top[1].Name)
	assert.InDelta(t, 0.7, top[1].Score, 1e-9)
	assert.Equal(t, "A", top[2].Name)
	assert.InDelta(t, 0.0, top[2].Score, 1e-9, "zero vector has no similarity")

	assert.Len(t, c.Recommend(messages.ClimateProfile{Temperature: "25 °C"}, 2), 2)
}

func TestCatalog_WithSoilAliases(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(testCatalog), WithSoilAliases(func(s string) string {
		if s == "laterite" {
			return "Red"
		}
		return s
	}))
	require.NoError(t, err)

	top := c.Recommend(messages.ClimateProfile{Temperature: "30–40", IndianSoilTypes: []string{"laterite"}}, 3)
	assert.Equal(t, "C", top[0].Name)
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c.Crops()), 20)

	cr, ok := c.Lookup("jowar")
	require.True(t, ok)
	assert.Equal(t, "Sorghum (Jowar)", cr.Name)
	assert.Equal(t, 25.0, cr.TempMin)
	assert.Equal(t, 32.0, cr.TempMax)

	_, ok = c.Lookup("dragonfruit")
	assert.False(t, ok)

	top := c.Recommend(messages.ClimateProfile{
		Temperature:     "22–34 °C",
		Precipitation:   "250 cm",
		Humidity:        "75 %",
		IndianSoilTypes: []string{"Alluvial", "Clay"},
		FAOSoilTypes:    []string{"Fluvisols", "Gleysols"},
	}, DefaultTopK)
	require.Len(t, top, DefaultTopK)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
	}
	names := []string{top[0].Name, top[1].Name, top[2].Name}
	assert.Contains(t, names, "Rice")
	assert.Contains(t, names, "Jute")
}

func TestSameCrop(t *testing.T) {
	assert.True(t, SameCrop(" rice ", "Rice"))
	assert.True(t, SameCrop("sorghum", "Sorghum (Jowar)"))
	assert.True(t, SameCrop("Jowar", "Sorghum (Jowar)"))
	assert.False(t, SameCrop("", "Rice"))
	assert.False(t, SameCrop("Ric", "Rice"))
}

func TestSuitability(t *testing.T) {
	top := []entities.CropScore{{Name: "B", Score: 0.81}, {Name: "C", Score: 0.7}}

	s := Suitability("b", top)
	assert.Equal(t, messages.Rank(1), s.Rank)
	assert.Equal(t, 0.81, s.Score)
	assert.Empty(t, s.Alternatives)

	s = Suitability("A", top)
	assert.Equal(t, messages.NotRanked, s.Rank)
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, []string{"B", "C"}, s.Alternatives)

	low := []entities.CropScore{{Name: "X", Score: 0.4}, {Name: "Y", Score: 0.3}, {Name: "Z", Score: 0.2}, {Name: "W", Score: 0.1}}
	s = Suitability("Y", low)
	assert.Equal(t, messages.Rank(2), s.Rank)
	assert.Equal(t, []string{"X", "Y", "Z"}, s.Alternatives, "alternatives are the top three names")

	s = Suitability("X", []entities.CropScore{{Name: "X", Score: 0.5}})
	assert.Equal(t, messages.Rank(1), s.Rank)
	assert.Equal(t, []string{"X"}, s.Alternatives, "a score of exactly 0.5 is not suitable")

	s = Suitability("X", []entities.CropScore{{Name: "X", Score: 0.51}})
	assert.Nil(t, s.Alternatives)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
}
