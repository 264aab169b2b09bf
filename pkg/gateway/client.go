// Package gateway is a client for an OpenAI-compatible LLM gateway supporting
// streamed chat completions and image+text generation.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	DefaultBaseURL        = "https://ai.gateway.lovable.dev/v1"
	DefaultTextModel      = "google/gemini-2.5-flash"
	DefaultImageModel     = "google/gemini-2.5-flash-image-preview"
	DefaultRequestTimeout = 60 * time.Second

	completionsPath = "/chat/completions"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 64 * 1024
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	TextModel  string
	ImageModel string

	// RequestTimeout bounds non-streaming calls. Streaming calls are bounded by
	// the caller's context.
	RequestTimeout time.Duration
}

// ImageResult is the outcome of an image generation call. URL is empty when the
// model answered without an image.
type ImageResult struct {
	URL  string
	Text string
}

// Client calls the gateway.
type Client struct {
	config Config
	http   *resty.Client
	logger *zap.Logger
}

// New creates a Client, filling unset config fields with defaults.
func New(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.TextModel == "" {
		config.TextModel = DefaultTextModel
	}
	if config.ImageModel == "" {
		config.ImageModel = DefaultImageModel
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")

	return &Client{
		config: config,
		http:   httpClient,
		logger: logger,
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// StreamChat requests a streamed completion and returns the raw event-stream body.
// The caller must close it. Non-2xx answers are returned as *StatusError.
func (c *Client) StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage) (io.ReadCloser, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	body := openai.ChatCompletionRequest{
		Model:    c.config.TextModel,
		Messages: messages,
		Stream:   true,
	}

	c.logger.Debug("requesting streamed completion",
		zap.String("model", body.Model),
		zap.Int("message_count", len(messages)),
	)

	resp, err := c.prepareRequest(ctx).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Accept-Encoding", "identity").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(completionsPath)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, fmt.Errorf("calling gateway: empty response body")
	}

	stream := resp.RawResponse.Body
	if !isSuccess(resp.StatusCode()) {
		defer stream.Close()
		data, _ := io.ReadAll(io.LimitReader(stream, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(string(data))}
	}

	return stream, nil
}

type imageRequest struct {
	Model      string                         `json:"model"`
	Messages   []openai.ChatCompletionMessage `json:"messages"`
	Modalities []string                       `json:"modalities"`
}

type imageResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				Type     string `json:"type"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateImage asks the image model for an image plus a short explanation.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	body := imageRequest{
		Model: c.config.ImageModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Modalities: []string{"image", "text"},
	}

	c.logger.Debug("requesting image generation", zap.String("model", body.Model))

	resp, err := c.prepareRequest(ctx).SetBody(body).Post(completionsPath)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}

	data := resp.Bytes()
	if !isSuccess(resp.StatusCode()) {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: truncate(string(data))}
	}

	var parsed imageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding image response: %w", err)
	}

	result := &ImageResult{}
	if len(parsed.Choices) > 0 {
		msg := parsed.Choices[0].Message
		result.Text = strings.TrimSpace(msg.Content)
		if len(msg.Images) > 0 {
			result.URL = msg.Images[0].ImageURL.URL
		}
	}

	return result, nil
}

// Complete requests a non-streamed completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	body := openai.ChatCompletionRequest{
		Model:    c.config.TextModel,
		Messages: messages,
	}

	resp, err := c.prepareRequest(ctx).SetBody(body).Post(completionsPath)
	if err != nil {
		return "", fmt.Errorf("calling gateway: %w", err)
	}

	data := resp.Bytes()
	if !isSuccess(resp.StatusCode()) {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: truncate(string(data))}
	}

	var parsed openai.ChatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("gateway returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.config.APIKey)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody]
}
