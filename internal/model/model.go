package model

import (
	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	Location               = entities.Location
	WeatherSummary         = entities.WeatherSummary
	SoilProfile            = entities.SoilProfile
	Crop                   = entities.Crop
	CropScore              = entities.CropScore
	ClimateProfile         = messages.ClimateProfile
	AnalysisReport         = messages.AnalysisReport
	AnalysisRequest        = messages.AnalysisRequest
	AnalysisCompletedEvent = messages.AnalysisCompletedEvent
)
