package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/internal/services/recommender"
)

// Pipeline runs the analysis steps directly, without a model choosing the tools.
type Pipeline struct {
	weather   WeatherService
	catalog   *recommender.Catalog
	insighter Insighter
	country   string
	topK      int
	logger    *zap.Logger
}

type PipelineOption func(*Pipeline)

func WithInsighter(i Insighter) PipelineOption {
	return func(p *Pipeline) {
		if i != nil {
			p.insighter = i
		}
	}
}

func WithCountry(c string) PipelineOption {
	return func(p *Pipeline) {
		if c != "" {
			p.country = c
		}
	}
}

func WithTopK(k int) PipelineOption {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

func NewPipeline(ws WeatherService, catalog *recommender.Catalog, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		weather:   ws,
		catalog:   catalog,
		insighter: TemplateInsighter{Catalog: catalog},
		country:   DefaultCountry,
		topK:      recommender.DefaultTopK,
		logger:    logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, pin, crop string) (messages.AnalysisReport, error) {
	crop = strings.TrimSpace(crop)
	if err := entities.ValidatePin(pin); err != nil {
		return messages.AnalysisReport{}, err
	}
	if err := entities.ValidateCrop(crop); err != nil {
		return messages.AnalysisReport{}, err
	}
	log := p.logger.With(zap.String("pin", pin), zap.String("crop", crop))

	loc, err := p.weather.GeocodeZip(ctx, pin, p.country)
	if err != nil {
		return messages.AnalysisReport{}, fmt.Errorf("location: %w", err)
	}

	var (
		summary entities.WeatherSummary
		soil    entities.SoilProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := p.weather.Summarize(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return fmt.Errorf("weather: %w", err)
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		s, err := p.weather.SoilType(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			// the soil share of the score is dropped, climate still ranks
			log.Warn("soil lookup failed, continuing without soil types", zap.Error(err))
			return nil
		}
		soil = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return messages.AnalysisReport{}, err
	}
	summary.City = loc.City

	profile := Profile(summary, soil)
	top := p.catalog.Recommend(profile, p.topK)
	report := reportFrom(profile, top, recommender.Suitability(crop, top))

	text, err := p.insighter.Insights(ctx, InsightInput{Location: loc, Weather: summary, Soil: soil, Report: report})
	if err != nil {
		log.Warn("insights failed", zap.Error(err))
	}
	report.Insights = text

	log.Info("analysis done", zap.String("city", loc.City),
		zap.Int("rank", int(report.CropSuitability.Rank)), zap.Float64("score", report.CropSuitability.Score))
	return report, nil
}
