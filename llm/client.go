package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string // OpenAI-compatible root, e.g. https://openrouter.ai/api/v1
	Model      string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
}

func (c *Config) setDefaults() {
	if c.Model == "" {
		c.Model = "google/gemini-2.5-flash"
	}
	if c.ImageModel == "" {
		c.ImageModel = "dall-e-3"
	}
	if c.ImageSize == "" {
		c.ImageSize = openai.CreateImageSize1792x1024
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// Client implements Gateway with go-openai.
type Client struct {
	api        *openai.Client
	model      string
	imageModel string
	imageSize  string
	logger     *zap.Logger
	calls      *prometheus.CounterVec
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCallCounter counts calls by op and outcome.
func WithCallCounter(v *prometheus.CounterVec) Option {
	return func(c *Client) { c.calls = v }
}

// NewClient builds a Client. It returns ErrNoAPIKey when cfg has no key.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg.setDefaults()
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		api:        openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete runs one chat completion.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	ccr := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	switch {
	case req.Tool != nil:
		ccr.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}}
		ccr.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.Tool.Name},
		}
	case req.JSON:
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, ccr)
	c.observe("complete", err)
	if err != nil {
		return Response{}, wrapGatewayError("complete", err)
	}
	c.logger.Debug("llm completion",
		zap.String("model", resp.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	if len(resp.Choices) == 0 {
		return Response{}, &ParseError{Err: fmt.Errorf("no choices in response")}
	}
	msg := resp.Choices[0].Message
	out := Response{Content: msg.Content, Model: resp.Model}
	for _, call := range msg.ToolCalls {
		if req.Tool == nil || call.Function.Name == req.Tool.Name {
			out.ToolArguments = call.Function.Arguments
			break
		}
	}
	return out, nil
}

// GenerateImage requests one base64 image and decodes it.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	c.observe("image", err)
	if err != nil {
		return nil, wrapGatewayError("image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("llm image: empty response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("llm image: decode base64: %w", err)
	}
	return data, nil
}

func (c *Client) observe(op string, err error) {
	if c.calls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.calls.WithLabelValues(op, outcome).Inc()
}
