package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/studioops/scriptpilot/internal/cache"
	"github.com/studioops/scriptpilot/internal/cost"
	"github.com/studioops/scriptpilot/internal/errors"
	"github.com/studioops/scriptpilot/internal/logger"
	"github.com/studioops/scriptpilot/internal/routing"
	"google.golang.org/genai"
)

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 1.0
)

// Request describes one generation call. A zero Model selects the default
// model; zero MaxTokens and Temperature select the defaults above.
type Request struct {
	Prompt      string
	System      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Response is the result of one generation call with its accounted cost.
// Cached responses carry zero cost.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Cached       bool
}

// GenerateFunc performs the raw model call. Injectable for tests.
type GenerateFunc func(ctx context.Context, model string, req Request) (*genai.GenerateContentResponse, error)

// Client wraps the Gemini API with budget gating and deterministic cost
// accounting. Every call consults the cost tracker before spending.
type Client struct {
	client     *genai.Client
	tracker    *cost.Tracker
	calculator *cost.Calculator
	selector   *routing.ModelSelector
	cache      *cache.Cache
	generateFn GenerateFunc
}

func NewClient(ctx context.Context, apiKey string, tracker *cost.Tracker) (*Client, error) {
	if apiKey == "" {
		return nil, errors.ErrGenerationKeyMissing
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	c := &Client{
		client:     client,
		tracker:    tracker,
		calculator: cost.NewCalculator(),
		selector:   routing.NewModelSelector(),
	}
	c.generateFn = c.defaultGenerate

	return c, nil
}

// WithCache enables the response cache. Cached generations are served
// without touching the API or the budget.
func (c *Client) WithCache(rc *cache.Cache) *Client {
	c.cache = rc
	return c
}

func (c *Client) defaultGenerate(ctx context.Context, model string, req Request) (*genai.GenerateContentResponse, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: req.MaxTokens,
		Temperature:     float32Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	return c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
}

// Generate performs one text-generation call. Budget limits are evaluated
// before the call is issued, so a tracker already at a hard limit never
// spends. The returned cost uses the static price table; a model missing
// from the table is estimated with the default model's pricing and logged,
// never failed.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		estimated := routing.EstimateTokens(req.Prompt)
		req.Model = c.selector.SelectModel(estimated)
		logger.Debug(ctx, "routing selected model",
			"model", req.Model,
			"estimated_tokens", estimated,
			"rationale", c.selector.Rationale(req.Model))
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}

	// Cache hits spend nothing, so they skip the budget gate.
	if cached, ok := c.cachedResponse(req); ok {
		return cached, nil
	}

	if err := c.tracker.CheckLimits(); err != nil {
		return nil, err
	}

	resp, err := c.generateFn(ctx, req.Model, req)
	if err != nil {
		return nil, classifyError(err)
	}

	inputTokens, outputTokens := extractUsage(resp)
	costUSD, known := c.calculator.Cost(req.Model, inputTokens, outputTokens)
	if !known {
		logger.Warn(ctx, "model missing from pricing table, estimating with default pricing",
			"model", req.Model,
			"default", cost.DefaultModel)
	}

	result := &Response{
		Text:         extractText(resp),
		Model:        req.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
	}
	c.storeResponse(ctx, req, result)

	return result, nil
}

func (c *Client) cacheKey(req Request) string {
	return c.cache.GenerateHash(req.Model + "|" + req.System + "|" + req.Prompt)
}

func (c *Client) cachedResponse(req Request) (*Response, bool) {
	if c.cache == nil {
		return nil, false
	}

	raw, hit, err := c.cache.Get(c.cacheKey(req))
	if err != nil || !hit {
		return nil, false
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	resp.Cached = true
	resp.CostUSD = 0

	return &resp, true
}

func (c *Client) storeResponse(ctx context.Context, req Request, resp *Response) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(c.cacheKey(req), resp); err != nil {
		logger.Warn(ctx, "could not cache generation response", "error", err)
	}
}

// GenerateTracked generates and records the resulting cost against a skill
// and optional workflow. The ledger is only touched after a successful
// generation. If the post-record limit check trips, the response is still
// returned alongside the BudgetExceededError: the content was already paid
// for, only the next attempt must stop.
func (c *Client) GenerateTracked(ctx context.Context, req Request, skill, workflow string) (*Response, error) {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Cached {
		return resp, nil
	}

	if err := c.tracker.AddCost(resp.CostUSD, skill, workflow, map[string]interface{}{
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	}); err != nil {
		return resp, err
	}

	return resp, nil
}

func classifyError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted"):
		genErr := errors.NewGenerationError("generation quota exceeded", err)
		genErr.Suggestion = "Wait a few minutes and try again, or check your API quota"
		return genErr
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication"):
		genErr := errors.NewGenerationError("generation API key rejected", err)
		genErr.Suggestion = "Check GEMINI_API_KEY in your environment"
		return genErr
	default:
		return errors.NewGenerationError("generation failed", err)
	}
}

func float32Ptr(f float32) *float32 {
	return &f
}
