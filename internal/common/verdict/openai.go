package verdict

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"citation-validator/internal/common/config"
	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/models"
)

// HTTPDoer is the transport handed to the SDK.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAIProvider calls an OpenAI-compatible chat completion API.
type OpenAIProvider struct {
	client *openai.Client
	cfg    config.ProviderConfig
	logger logger.Logger
	// limiter paces calls across every panel sharing this provider. Nil means unlimited.
	limiter *rate.Limiter

	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewOpenAIProvider(cfg config.ProviderConfig, httpClient HTTPDoer, log logger.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	p := &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		cfg:       cfg,
		logger:    logger.Component(log, "verdict-provider"),
		baseDelay: 500 * time.Millisecond,
		maxDelay:  8 * time.Second,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// CheckCredentials fails when no API key is configured.
func (p *OpenAIProvider) CheckCredentials() error {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return apperrors.NewProviderNotConfiguredError("provider.api_key is empty")
	}
	return nil
}

// Evaluate issues one chat completion, retrying transient failures with
// exponential backoff.
func (p *OpenAIProvider) Evaluate(ctx context.Context, req Request) (*Judgment, error) {
	if err := p.CheckCredentials(); err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		resp, err := p.call(ctx, chatReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, apperrors.NewInvalidVerdictError(req.Persona.ID, "provider returned no choices")
			}
			return &Judgment{
				Content: resp.Choices[0].Message.Content,
				Model:   resp.Model,
				Usage:   p.usage(resp.Usage),
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == p.cfg.MaxRetries {
			break
		}

		delay := p.baseDelay * time.Duration(1<<attempt)
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
		p.logger.Warn("provider call failed, retrying", map[string]interface{}{
			"agent":   req.Persona.ID,
			"tier":    string(req.Tier),
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperrors.NewProviderTimeoutError(req.Persona.ID, ctx.Err())
		}
	}

	if isTimeout(lastErr) || ctx.Err() != nil {
		return nil, apperrors.NewProviderTimeoutError(req.Persona.ID, lastErr)
	}
	return nil, apperrors.NewProviderFailedError(req.Persona.ID, lastErr)
}

func (p *OpenAIProvider) call(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, fmt.Errorf("rate limit wait: %v: %w", err, context.DeadlineExceeded)
		}
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.GetDuration(p.cfg.Timeout))
		defer cancel()
	}
	return p.client.CreateChatCompletion(ctx, req)
}

func (p *OpenAIProvider) usage(u openai.Usage) models.Usage {
	cost := float64(u.PromptTokens)/1000*p.cfg.PromptCostPer1K +
		float64(u.CompletionTokens)/1000*p.cfg.CompletionCostPer1K
	return models.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Cost:             cost,
	}
}

// isRetryable reports whether a provider error is transient: rate limits,
// server errors and network failures.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	if isTimeout(err) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"connection refused", "connection reset", "eof", "unavailable"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

var _ Provider = (*OpenAIProvider)(nil)
var _ CredentialChecker = (*OpenAIProvider)(nil)

// String is used in start-up logs.
func (p *OpenAIProvider) String() string {
	return fmt.Sprintf("openai(model=%s, base=%s)", p.cfg.Model, p.cfg.BaseURL)
}
