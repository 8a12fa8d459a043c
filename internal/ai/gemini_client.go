package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient generates content through the Gemini API. It sends exactly one
// request per Generate call; the SDK client is created lazily on first use.
type GeminiClient struct {
	apiKey  string
	baseURL string
	timeout int // seconds, 0 means SDK default

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient returns a runtime for the Gemini API. An empty apiKey falls
// back to GEMINI_API_KEY / GOOGLE_API_KEY, which the SDK reads itself.
func NewGeminiClient(apiKey string, timeoutSec int) *GeminiClient {
	return &GeminiClient{apiKey: strings.TrimSpace(apiKey), timeout: timeoutSec}
}

// NewGeminiClientWithBaseURL points the SDK at a custom endpoint (used in tests).
func NewGeminiClientWithBaseURL(apiKey string, timeoutSec int, baseURL string) *GeminiClient {
	c := NewGeminiClient(apiKey, timeoutSec)
	c.baseURL = baseURL
	return c
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI}
		if c.timeout > 0 {
			cfg.HTTPClient = &http.Client{Timeout: time.Duration(c.timeout) * time.Second}
		}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, cfg)
	})
	return c.client, c.initErr
}

// Generate flattens the messages into one prompt (system turns first) and
// calls GenerateContent once.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := c.sdk(ctx)
	if err != nil {
		return nil, &AuthError{APIError: &APIError{StatusCode: http.StatusUnauthorized, Message: err.Error()}}
	}

	var sys, user []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			sys = append(sys, m.Content)
		} else {
			user = append(user, m.Content)
		}
	}
	gcfg := &genai.GenerateContentConfig{}
	if len(sys) > 0 {
		gcfg.SystemInstruction = genai.NewContentFromText(strings.Join(sys, "\n\n"), genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		gcfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := cli.Models.GenerateContent(ctx, model, genai.Text(strings.Join(user, "\n\n")), gcfg)
	if err != nil {
		return nil, classifyGeminiError(c.host(), err)
	}
	out := &GenerateResponse{
		ID:      resp.ResponseID,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: resp.Text()}}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *GeminiClient) host() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "generativelanguage.googleapis.com"
}

// classifyGeminiError maps SDK errors onto the package's typed errors.
func classifyGeminiError(host string, err error) error {
	var apiErr genai.APIError
	if pe := (*genai.APIError)(nil); errors.As(err, &pe) && pe != nil {
		apiErr = *pe
	} else {
		errors.As(err, &apiErr)
	}
	if apiErr.Code != 0 {
		ae := &APIError{StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message}
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return &AuthError{APIError: ae}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			if containsAnyFold(apiErr.Message, "quota", "billing") {
				return &QuotaExceededError{APIError: ae}
			}
			return &RateLimitError{APIError: ae}
		case apiErr.Code == http.StatusNotFound:
			return &ModelNotFoundError{APIError: ae}
		case apiErr.Code == http.StatusBadRequest:
			if containsFold(apiErr.Message, "api key") {
				return &AuthError{APIError: ae}
			}
			return &BadRequestError{APIError: ae}
		case apiErr.Code >= 500:
			return &ServerError{APIError: ae}
		}
		return ae
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnreachableError{Host: host, Err: fmt.Errorf("gemini: %w", err)}
}
