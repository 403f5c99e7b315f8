// internal/workers/validation/tier2-panel/handler.go
package tier2panel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/metrics"
	"citation-validator/internal/common/observability"
	"citation-validator/internal/common/verdict"
	"citation-validator/internal/models"
	"citation-validator/internal/workers/validation/consensus"
	"citation-validator/pkg/registry"
)

const TaskType = "tier2-panel"

// Handler runs the five-persona validity panel for one citation.
type Handler struct {
	config   *Config
	provider verdict.Provider
	personas []registry.Persona
	engine   *consensus.Engine
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, provider verdict.Provider, personas []registry.Persona, engine *consensus.Engine, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if len(personas) != config.PanelSize {
		return nil, fmt.Errorf("tier2 panel needs %d personas, got %d", config.PanelSize, len(personas))
	}
	return &Handler{
		config:   config,
		provider: provider,
		personas: personas,
		engine:   engine,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Evaluate issues every persona call concurrently and aggregates the verdicts.
// The panel is all-or-nothing: one failed call fails the whole evaluation.
func (h *Handler) Evaluate(ctx context.Context, citation models.Citation, cctx models.CitationContext) (*models.Tier2Result, error) {
	start := time.Now()
	verdicts := make([]models.AgentVerdict, len(h.personas))

	g, gctx := errgroup.WithContext(ctx)
	for i, persona := range h.personas {
		g.Go(func() error {
			callCtx := gctx
			if h.config.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, h.config.CallTimeout)
				defer cancel()
			}

			j, err := h.provider.Evaluate(callCtx, verdict.Request{
				Persona:  persona,
				Tier:     models.Tier2,
				Citation: citation,
				Context:  cctx,
			})
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(string(models.Tier2), persona.ID, "error").Inc()
				return providerError(persona.ID, err)
			}

			v, err := verdict.ParseTier2(persona, j, h.now())
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(string(models.Tier2), persona.ID, "invalid").Inc()
				return err
			}
			metrics.ProviderCalls.WithLabelValues(string(models.Tier2), persona.ID, "ok").Inc()
			verdicts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.record(ctx, start, "error")
		h.logger.Warn("tier2 panel failed", map[string]interface{}{
			"citationId": citation.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	c, err := h.engine.Tier2(verdicts, h.config.PanelSize)
	if err != nil {
		h.record(ctx, start, "error")
		return nil, err
	}

	var usage models.Usage
	for _, v := range verdicts {
		usage = usage.Add(v.Usage)
	}
	h.record(ctx, start, "ok")
	h.obs.RecordPanelUsage(ctx, string(models.Tier2), usage.PromptTokens, usage.CompletionTokens, usage.Cost)

	h.logger.Info("tier2 panel completed", map[string]interface{}{
		"citationId":     citation.ID,
		"agreement":      string(c.AgreementLevel),
		"recommendation": string(c.Recommendation),
		"confidence":     c.ConfidenceScore,
		"tier3Trigger":   c.Tier3Trigger,
	})

	return &models.Tier2Result{
		Verdicts:    verdicts,
		Consensus:   c,
		Usage:       usage,
		CompletedAt: h.now(),
	}, nil
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	d := time.Since(start)
	metrics.PanelDuration.WithLabelValues(string(models.Tier2)).Observe(d.Seconds())
	h.obs.RecordPanelDuration(ctx, string(models.Tier2), d, status)
}

// providerError keeps classified errors and wraps anything else as a provider failure.
func providerError(agentID string, err error) error {
	if apperrors.CodeOf(err) != apperrors.ErrCodeInternal {
		return err
	}
	return apperrors.NewProviderFailedError(agentID, err)
}
