package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/config"
	"github.com/LeonardoBeccarini/cropsense/internal/services/advisor"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_Direct(t *testing.T) {
	cfg := loadConfig(t)
	a, err := New(context.Background(), cfg, zap.NewNop(), Options{History: true, Publish: true})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &advisor.Pipeline{}, a.Analyzer)
	assert.NotNil(t, a.Service)
	assert.Nil(t, a.Recorder)
	assert.Nil(t, a.MQTT)
	assert.Len(t, a.Weather.BreakerStates(), 3)
	_, ok := a.Catalog.Lookup("Rice")
	assert.True(t, ok)
}

func TestNew_AgentNeedsKey(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Mode = config.ModeAgent
	_, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestNew_CustomFiles(t *testing.T) {
	cfg := loadConfig(t)
	dir := t.TempDir()

	cfg.Catalog.Path = filepath.Join(dir, "missing.csv")
	_, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	assert.ErrorContains(t, err, "open crop catalog")

	csv := filepath.Join(dir, "crops.csv")
	require.NoError(t, os.WriteFile(csv, []byte("Crop,Temp (°C),Rain (cm),RH (%),Indian Soil Type,FAO/WRB Soil Type\nMillet,25–35,40,50,Red,Luvisols\n"), 0o600))
	cfg.Catalog.Path = csv
	a, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	require.NoError(t, err)
	assert.Len(t, a.Catalog.Crops(), 1)

	cfg.Soil.Mapping = filepath.Join(dir, "mapping.yml")
	require.NoError(t, os.WriteFile(cfg.Soil.Mapping, []byte("aliases: {}\n"), 0o600))
	_, err = New(context.Background(), cfg, zap.NewNop(), Options{})
	assert.ErrorContains(t, err, "no groups")
}
