// internal/workers/validation/tier3-panel/handler.go
package tier3panel

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

const TaskType = "tier3-panel"

// Handler runs the escalation panel. Unlike Tier 2 it sees the earlier
// panel's result and answers on the risk rubric.
type Handler struct {
	config   *Config
	provider verdict.Provider
	personas []registry.Persona
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, provider verdict.Provider, personas []registry.Persona, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if len(personas) != config.PanelSize {
		return nil, fmt.Errorf("tier3 panel needs %d personas, got %d", config.PanelSize, len(personas))
	}
	return &Handler{
		config:   config,
		provider: provider,
		personas: personas,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (h *Handler) Evaluate(ctx context.Context, citation models.Citation, cctx models.CitationContext, tier2 *models.Tier2Result) (*models.Tier3Result, error) {
	start := time.Now()
	verdicts := make([]models.Tier3AgentVerdict, len(h.personas))

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
				Tier:     models.Tier3,
				Citation: citation,
				Context:  cctx,
				Tier2:    tier2,
			})
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(string(models.Tier3), persona.ID, "error").Inc()
				if apperrors.CodeOf(err) == apperrors.ErrCodeInternal {
					return apperrors.NewProviderFailedError(persona.ID, err)
				}
				return err
			}

			v, err := verdict.ParseTier3(persona, j, h.now())
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(string(models.Tier3), persona.ID, "invalid").Inc()
				return err
			}
			metrics.ProviderCalls.WithLabelValues(string(models.Tier3), persona.ID, "ok").Inc()
			verdicts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.record(ctx, start, "error")
		h.logger.Warn("tier3 panel failed", map[string]interface{}{
			"citationId": citation.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	c, err := consensus.Tier3(verdicts, h.config.PanelSize)
	if err != nil {
		h.record(ctx, start, "error")
		return nil, err
	}

	var usage models.Usage
	for _, v := range verdicts {
		usage = usage.Add(v.Usage)
	}
	h.record(ctx, start, "ok")
	h.obs.RecordPanelUsage(ctx, string(models.Tier3), usage.PromptTokens, usage.CompletionTokens, usage.Cost)

	h.logger.Info("tier3 panel completed", map[string]interface{}{
		"citationId": citation.ID,
		"riskLevel":  string(c.FinalRiskLevel),
		"agreement":  string(c.AgreementLevel),
		"confidence": c.ConfidenceScore,
	})

	return &models.Tier3Result{
		Verdicts:    verdicts,
		Consensus:   c,
		Usage:       usage,
		CompletedAt: h.now(),
	}, nil
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	d := time.Since(start)
	metrics.PanelDuration.WithLabelValues(string(models.Tier3)).Observe(d.Seconds())
	h.obs.RecordPanelDuration(ctx, string(models.Tier3), d, status)
}
