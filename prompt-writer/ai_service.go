package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// GenerationOptions carries the per-call model parameters the prompt
// assembler selects for each call kind.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// AIService is the upstream model boundary. Implementations must tag every
// failure with a PipelineError kind at the point of detection.
type AIService interface {
	GenerateContentWithSystem(ctx context.Context, op, systemPrompt, userPrompt string, opts GenerationOptions) (string, error)
}

// OpenRouterService talks to an OpenAI-compatible chat-completions endpoint.
type OpenRouterService struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	callTimeout time.Duration
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

// NewOpenRouterService creates the upstream client. callTimeout is the
// per-call budget; each call gets its own deadline independent of siblings.
func NewOpenRouterService(apiKey, baseURL, model string, callTimeout time.Duration) *OpenRouterService {
	return &OpenRouterService{
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		client:      &http.Client{},
		callTimeout: callTimeout,
	}
}

// GenerateContentWithSystem implements AIService.
func (o *OpenRouterService) GenerateContentWithSystem(ctx context.Context, op, systemPrompt, userPrompt string, opts GenerationOptions) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:      false,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSONMode {
		body.ResponseFormat = &respFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", &PipelineError{Kind: KindFatal, Op: op, Err: fmt.Errorf("marshalling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &PipelineError{Kind: KindFatal, Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("X-Title", "Video Prompt Automation Service")

	resp, err := o.client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return "", &PipelineError{Kind: KindTimeout, Op: op, Err: err}
		}
		return "", &PipelineError{Kind: KindTransient, Op: op, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeoutError(err) {
			return "", &PipelineError{Kind: KindTimeout, Op: op, Err: err}
		}
		return "", &PipelineError{Kind: KindTransient, Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(op, resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &PipelineError{Kind: KindTransient, Op: op, Err: fmt.Errorf("unmarshalling response: %w", err)}
	}
	if chatResp.Error != nil {
		return "", classifyAPIError(op, chatResp.Error)
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", &PipelineError{Kind: KindTransient, Op: op, Err: errors.New("no content in response")}
	}

	return chatResp.Choices[0].Message.Content, nil
}

func classifyHTTPStatus(op string, status int, body []byte) *PipelineError {
	err := fmt.Errorf("API request failed with status %d: %s", status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return &PipelineError{Kind: KindTransient, Op: op, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &PipelineError{Kind: KindTimeout, Op: op, Err: err}
	case status >= 500:
		return &PipelineError{Kind: KindTransient, Op: op, Err: err}
	default:
		// 4xx other than 429/408: bad request, auth, etc. Not retryable.
		return &PipelineError{Kind: KindFatal, Op: op, Err: err}
	}
}

func classifyAPIError(op string, apiErr *chatError) *PipelineError {
	err := fmt.Errorf("API error: %s", apiErr.Message)
	msg := strings.ToLower(apiErr.Message)
	if strings.Contains(msg, "rate") || strings.Contains(msg, "overload") || strings.Contains(msg, "temporar") {
		return &PipelineError{Kind: KindTransient, Op: op, Err: err}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return &PipelineError{Kind: KindTimeout, Op: op, Err: err}
	}
	return &PipelineError{Kind: KindFatal, Op: op, Err: err}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
