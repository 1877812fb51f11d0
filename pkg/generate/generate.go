// Package generate turns a natural-language prompt into JSX through
// the OpenAI chat API. The output is treated exactly like pasted
// source: it goes through the normal parse, stamp and render path, so
// a bad generation surfaces as a compile error, never as markup the
// editor trusts.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/limits"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/retry"
)

// Defaults for the chat call.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 1000
	DefaultTimeout   = 30 * time.Second
)

// Common errors.
var (
	ErrAPIKeyRequired = errors.New("generate: api key required")
	ErrEmptyPrompt    = errors.New("generate: prompt is empty")
	ErrNoContent      = errors.New("generate: model returned no content")
	ErrRateLimited    = errors.New("generate: too many generation requests")
)

// systemPrompt pins the model to output the editor can mount.
const systemPrompt = `You generate React JSX for a visual editor.
Rules:
- Reply with a single JSX element and nothing else: no prose, no markdown fences, no imports, no exports.
- Use plain HTML tags (div, h1, p, button, img, a, span, ul, li, input, label).
- Style with inline style objects only, e.g. style={{color: '#333333', padding: '16px'}}.
- No event handlers, no script tags, no dangerouslySetInnerHTML.
- Keep it under 60 lines.`

// chatClient is the slice of the OpenAI client the generator uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures a Generator.
type Config struct {
	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the API endpoint, for proxies.
	BaseURL string

	// Model names the chat model.
	Model string

	// MaxTokens bounds one completion.
	MaxTokens int

	// Timeout bounds one generation request end to end, retries
	// included.
	Timeout time.Duration

	// Retry configures backoff between attempts. Nil uses
	// retry.DefaultConfig.
	Retry *retry.Config

	// Breaker configures the circuit breaker in front of the API. Nil
	// uses retry.DefaultBreakerConfig.
	Breaker *retry.BreakerConfig

	// RequestsPerMinute caps generation calls across all sessions.
	// Zero means 10.
	RequestsPerMinute int

	// Logger defaults to logging.NopLogger.
	Logger logging.Logger
}

// Generator produces JSX from prompts.
type Generator struct {
	client    chatClient
	breaker   *retry.Breaker
	retryCfg  *retry.Config
	window    *limits.SlidingWindow
	log       logging.Logger
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewGenerator creates a generator. The API key is required; everything
// else has defaults.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &Generator{
		client:    openai.NewClientWithConfig(clientConfig),
		breaker:   retry.NewBreaker(cfg.Breaker),
		retryCfg:  retryCfg,
		window:    limits.NewSlidingWindow(cfg.RequestsPerMinute, time.Minute),
		log:       cfg.Logger,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

// BreakerState reports the circuit breaker state ("closed", "open",
// "half-open") for health checks.
func (g *Generator) BreakerState() string {
	return g.breaker.State().String()
}

// Generate produces JSX for a prompt. Attempts are retried with
// backoff; a run of failures trips the breaker and later calls fail
// fast until the API recovers.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if !g.window.Allow("generate") {
		return "", ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	cfg := *g.retryCfg
	cfg.RetryIf = retryable
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.log.Warn("generation attempt failed",
			logging.Int("attempt", attempt), logging.Err(err))
	}

	start := time.Now()
	source, err := retry.DoWithResult(ctx, &cfg, func() (string, error) {
		var out string
		callErr := g.breaker.Execute(func() error {
			resp, apiErr := g.client.CreateChatCompletion(ctx, req)
			if apiErr != nil {
				return apiErr
			}
			if len(resp.Choices) == 0 {
				return ErrNoContent
			}
			out = resp.Choices[0].Message.Content
			return nil
		})
		return out, callErr
	})
	if err != nil {
		return "", fmt.Errorf("generate component: %w", err)
	}

	g.log.Info("component generated",
		logging.Int("chars", len(source)),
		logging.Duration("elapsed", time.Since(start)))
	return ExtractJSX(source), nil
}

// retryable keeps client-side mistakes and an open breaker from
// burning attempts; everything else (timeouts, 429s, 5xx) retries.
func retryable(err error) bool {
	if errors.Is(err, retry.ErrBreakerOpen) || errors.Is(err, ErrNoContent) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// ExtractJSX strips the markdown fences models add despite
// instructions and returns the bare element text.
func ExtractJSX(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
