package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePin(t *testing.T) {
	assert.NoError(t, ValidatePin("507115"))
	for _, bad := range []string{"", "50711", "5071155", "50711a", " 507115", "５０７１１５"} {
		assert.ErrorIs(t, ValidatePin(bad), ErrInvalidPin, bad)
	}
}

func TestValidateCrop(t *testing.T) {
	assert.NoError(t, ValidateCrop("Rice"))
	assert.ErrorIs(t, ValidateCrop("  \t"), ErrMissingCrop)
}

func TestClassifyMoisture(t *testing.T) {
	assert.Equal(t, MoistureLow, ClassifyMoisture(0.19))
	assert.Equal(t, MoistureMedium, ClassifyMoisture(0.2))
	assert.Equal(t, MoistureMedium, ClassifyMoisture(0.39))
	assert.Equal(t, MoistureHigh, ClassifyMoisture(0.4))
}

func TestMoistureLevel_Value(t *testing.T) {
	assert.Equal(t, 0.0, MoistureLow.Value())
	assert.Equal(t, 0.25, MoistureLowMedium.Value())
	assert.Equal(t, 0.75, MoistureModHigh.Value())
	assert.Equal(t, 1.0, MoistureHigh.Value())
	assert.Equal(t, 0.5, MoistureLevel("Soggy").Value())
}
