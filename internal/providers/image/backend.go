package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"batchforge/internal/domain"
)

// BackendOptions controls how the HTTP backend client is configured.
type BackendOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// BackendClient talks to a txt2img-style generation backend over HTTP.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewBackendClient constructs a backend client with sane defaults.
func NewBackendClient(opts BackendOptions) *BackendClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:7860"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &BackendClient{
		httpClient: client,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
	}
}

type txt2imgRequest struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	SamplerName    string         `json:"sampler_name,omitempty"`
	Steps          int            `json:"steps,omitempty"`
	CFGScale       float64        `json:"cfg_scale,omitempty"`
	Width          int            `json:"width,omitempty"`
	Height         int            `json:"height,omitempty"`
	Seed           int64          `json:"seed"`
	BatchSize      int            `json:"batch_size"`
	Override       map[string]any `json:"override_settings,omitempty"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
	Detail string   `json:"detail"`
}

// Generate requests a single image. Any transport error, non-2xx status or
// empty result is reported as a provider failure so the caller's retry
// policy can take over.
func (c *BackendClient) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if c == nil {
		return nil, errors.New("backend client not configured")
	}

	payload := txt2imgRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		SamplerName:    req.Sampler,
		Steps:          req.Steps,
		CFGScale:       req.CFGScale,
		Width:          req.Width,
		Height:         req.Height,
		Seed:           -1,
		BatchSize:      1,
	}
	if req.Seed != nil {
		payload.Seed = *req.Seed
	}
	if req.Model != "" {
		payload.Override = map[string]any{"sd_model_checkpoint": req.Model}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/sdapi/v1/txt2img"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke backend: %w: %w", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	var out txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("backend status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
		}
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return nil, fmt.Errorf("backend status %d: %s: %w", resp.StatusCode, out.Detail, domain.ErrProviderFailure)
		}
		return nil, fmt.Errorf("backend status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("backend returned no images: %w", domain.ErrProviderFailure)
	}

	data, err := base64.StdEncoding.DecodeString(out.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	asset := &Asset{
		Data:   data,
		Format: "image/png",
		Width:  req.Width,
		Height: req.Height,
		Seed:   seedFromInfo(out.Info),
		Info:   out.Info,
	}
	return asset, nil
}

// seedFromInfo extracts the backend-chosen seed from the info JSON blob,
// returning -1 when absent.
func seedFromInfo(info string) int64 {
	if info == "" {
		return -1
	}
	var parsed struct {
		Seed int64 `json:"seed"`
	}
	if err := json.Unmarshal([]byte(info), &parsed); err != nil {
		return -1
	}
	return parsed.Seed
}

var _ Generator = (*BackendClient)(nil)
