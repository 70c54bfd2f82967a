package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openaiClient implements the Client interface for OpenAI-compatible APIs.
type openaiClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	base := "https://api.openai.com/v1"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	return &openaiClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *openaiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	oReq := openaiRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	} else if c.cfg.MaxTokens > 0 {
		oReq.MaxTokens = c.cfg.MaxTokens
	}
	if req.Temperature > 0 {
		oReq.Temperature = req.Temperature
	} else if c.cfg.Temperature > 0 {
		oReq.Temperature = c.cfg.Temperature
	}
	if req.JSONMode {
		oReq.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var oErr openaiErrorResponse
		_ = json.Unmarshal(respBody, &oErr)
		msg := oErr.Error.Message
		if msg == "" {
			msg = httpResp.Status
		}
		return nil, &APIError{
			Provider:   OpenAI,
			Model:      c.cfg.Model,
			Status:     httpResp.StatusCode,
			Code:       oErr.Error.Code,
			Message:    msg,
			RetryAfter: parseRetryAfterHeader(httpResp.Header.Get("Retry-After")),
		}
	}

	var oResp openaiResponse
	if err := json.Unmarshal(respBody, &oResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(oResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &Response{
		Content:      oResp.Choices[0].Message.Content,
		FinishReason: oResp.Choices[0].FinishReason,
		TokensIn:     oResp.Usage.PromptTokens,
		TokensOut:    oResp.Usage.CompletionTokens,
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *openaiClient) Model() string      { return c.cfg.Model }
func (c *openaiClient) Provider() Provider { return OpenAI }
