package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

// HandleAnalyze serves POST /analyze.
func (g *Gateway) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.cfg.MaxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgBadBody})
		return
	}
	in.PinCode = strings.TrimSpace(in.PinCode)
	if err := entities.ValidatePin(in.PinCode); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidPin})
		return
	}
	if err := entities.ValidateCrop(in.Crop); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgMissingCrop})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.AnalysisTimeout)
	defer cancel()

	report, ev, err := g.analyses.Handle(ctx, messages.AnalysisRequest{
		RequestID: middleware.GetReqID(r.Context()),
		PinCode:   in.PinCode,
		Crop:      in.Crop,
	})
	g.metrics.analysis(ev.Status)
	if err != nil {
		g.logger.Error("error during analysis", zap.String("request_id", ev.RequestID),
			zap.String("pin", in.PinCode), zap.String("crop", in.Crop), zap.Error(err))
		code := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		writeJSON(w, code, ErrorResponse{Error: "Error during analysis: " + err.Error()})
		return
	}
	w.Header().Set("X-Request-Id", ev.RequestID)
	writeJSON(w, http.StatusOK, report)
}
