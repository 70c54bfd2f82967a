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

// geminiClient implements the Client interface for the Google Gemini API.
type geminiClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	base := "https://generativelanguage.googleapis.com/v1beta"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	return &geminiClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Details []struct {
		Type       string `json:"@type"`
		RetryDelay string `json:"retryDelay"`
	} `json:"details"`
}

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	gReq := geminiRequest{}

	if req.System != "" {
		gReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		gReq.Contents = append(gReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	gReq.GenerationConfig = &geminiGenConfig{}
	if req.MaxTokens > 0 {
		gReq.GenerationConfig.MaxOutputTokens = req.MaxTokens
	} else if c.cfg.MaxTokens > 0 {
		gReq.GenerationConfig.MaxOutputTokens = c.cfg.MaxTokens
	}
	if req.Temperature > 0 {
		gReq.GenerationConfig.Temperature = req.Temperature
	} else if c.cfg.Temperature > 0 {
		gReq.GenerationConfig.Temperature = c.cfg.Temperature
	}
	if req.JSONMode {
		gReq.GenerationConfig.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.base, c.cfg.Model, c.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, c.apiError(httpResp, &geminiError{Message: string(respBody)})
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if gResp.Error != nil {
		return nil, c.apiError(httpResp, gResp.Error)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, c.apiError(httpResp, &geminiError{Message: httpResp.Status})
	}

	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in Gemini response")
	}

	return &Response{
		Content:      gResp.Candidates[0].Content.Parts[0].Text,
		FinishReason: gResp.Candidates[0].FinishReason,
		TokensIn:     gResp.UsageMetadata.PromptTokenCount,
		TokensOut:    gResp.UsageMetadata.CandidatesTokenCount,
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// apiError builds a classified *APIError, preferring the RetryInfo detail
// over the Retry-After header when both are present.
func (c *geminiClient) apiError(resp *http.Response, gErr *geminiError) error {
	retryAfter := parseRetryAfterHeader(resp.Header.Get("Retry-After"))
	for _, d := range gErr.Details {
		if d.RetryDelay == "" {
			continue
		}
		if delay, err := time.ParseDuration(d.RetryDelay); err == nil && delay > 0 {
			retryAfter = delay
		}
	}

	return &APIError{
		Provider:   Gemini,
		Model:      c.cfg.Model,
		Status:     resp.StatusCode,
		Code:       gErr.Status,
		Message:    gErr.Message,
		RetryAfter: retryAfter,
	}
}

func (c *geminiClient) Model() string      { return c.cfg.Model }
func (c *geminiClient) Provider() Provider { return Gemini }
