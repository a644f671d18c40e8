package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

const DefaultMaxTurns = 12

var ErrTooManyTurns = errors.New("agent did not produce an answer within the turn limit")

// Agent lets a function-calling model chain the toolbox and answer with a report.
type Agent struct {
	model    Model
	tools    *Toolbox
	maxTurns int
	logger   *zap.Logger
}

func NewAgent(model Model, tools *Toolbox, maxTurns int, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Agent{model: model, tools: tools, maxTurns: maxTurns, logger: logger}
}

func (a *Agent) Run(ctx context.Context, pin, crop string) (messages.AnalysisReport, error) {
	crop = strings.TrimSpace(crop)
	if err := entities.ValidatePin(pin); err != nil {
		return messages.AnalysisReport{}, err
	}
	if err := entities.ValidateCrop(crop); err != nil {
		return messages.AnalysisReport{}, err
	}

	log := a.logger.With(zap.String("pin", pin), zap.String("crop", crop))
	history := []Turn{{Role: RoleUser, Text: buildQuery(pin, crop)}}
	specs := a.tools.Specs()

	for turn := 1; turn <= a.maxTurns; turn++ {
		resp, err := a.model.Generate(ctx, ModelRequest{System: systemPrompt, History: history, Tools: specs})
		if err != nil {
			return messages.AnalysisReport{}, fmt.Errorf("model turn %d: %w", turn, err)
		}
		if len(resp.Calls) == 0 {
			log.Debug("agent answered", zap.Int("turns", turn))
			r, err := ParseReport(resp.Text)
			if err != nil {
				log.Warn("agent answer rejected", zap.Error(err), zap.String("text", resp.Text))
				return r, err
			}
			if r.CropSuitability.CropName == "" {
				r.CropSuitability.CropName = crop
			}
			return r, nil
		}

		history = append(history, Turn{Role: RoleModel, Text: resp.Text, Calls: resp.Calls})
		history = append(history, Turn{Role: RoleUser, Results: a.execute(ctx, log, resp.Calls)})
		if err := ctx.Err(); err != nil {
			return messages.AnalysisReport{}, err
		}
	}
	return messages.AnalysisReport{}, ErrTooManyTurns
}

// execute runs the calls of one turn concurrently, keeping their order.
func (a *Agent) execute(ctx context.Context, log *zap.Logger, calls []FunctionCall) []FunctionResult {
	results := make([]FunctionResult, len(calls))
	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			start := time.Now()
			res := a.tools.Call(ctx, c.Name, c.Args)
			log.Debug("tool call", zap.String("tool", c.Name), zap.Duration("took", time.Since(start)),
				zap.Bool("failed", res["error"] != nil))
			results[i] = FunctionResult{ID: c.ID, Name: c.Name, Response: res}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
