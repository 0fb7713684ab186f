package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type AnthropicClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewAnthropicClient(apiKey, baseURL string, hc *http.Client) *AnthropicClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}
	return &AnthropicClient{http: hc, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicMsgReq struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   float64            `json:"temperature"`
	TopP          *float64           `json:"top_p,omitempty"`
	Stream        bool               `json:"stream"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
}

type anthropicMsgResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Do(ctx context.Context, req Request) (Response, error) {
	var blocks []anthropicBlock
	if req.ImageBase64 != "" {
		blocks = append(blocks, anthropicBlock{
			Type:   "image",
			Source: &anthropicSource{Type: "base64", MediaType: req.ImageMIME, Data: req.ImageBase64},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: req.Prompt})

	payload := anthropicMsgReq{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        req.Stream,
		StopSequences: req.Stop,
		Messages:      []anthropicMessage{{Role: "user", Content: blocks}},
	}

	// Newer models reject temperature and top_p together; the neutral
	// top_p of 1 is left to the server default.
	if req.TopP > 0 && req.TopP < 1 {
		topP := req.TopP
		payload.TopP = &topP
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(c.Name(), resp); err != nil {
		return Response{}, err
	}

	var r anthropicMsgResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decoding anthropic response: %w", err)
	}
	if len(r.Content) == 0 {
		return Response{}, ErrNoChoices
	}

	var sb strings.Builder
	for _, part := range r.Content {
		if part.Type == "" || part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	return Response{Text: sb.String(), TokensIn: r.Usage.InputTokens, TokensOut: r.Usage.OutputTokens}, nil
}
