package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/local/dococr/internal/imageenc"
)

const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// ChatClient talks to any OpenAI-compatible chat/completions endpoint
// (Groq, OpenAI).
type ChatClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	name    string
}

// ChatOptions configures a ChatClient. An empty APIKey is not rejected; the
// provider answers 401 on the first call.
type ChatOptions struct {
	Name       string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewChatClient(opts ChatOptions) *ChatClient {
	c := &ChatClient{
		http:    opts.HTTPClient,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		name:    opts.Name,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.baseURL == "" {
		c.baseURL = GroqBaseURL
	}
	if c.name == "" {
		c.name = "groq"
	}
	return c
}

func (c *ChatClient) Name() string { return c.name }

type chatImageURL struct {
	URL string `json:"url"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
	Stop        []string      `json:"stop"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *ChatClient) Do(ctx context.Context, req Request) (Response, error) {
	// Instruction first, then the image as a data URL.
	content := []chatContentPart{{Type: "text", Text: req.Prompt}}
	if req.ImageBase64 != "" {
		content = append(content, chatContentPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: imageenc.DataURL(req.ImageMIME, req.ImageBase64)},
		})
	}

	payload := chatReq{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Stop:        req.Stop,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(c.name, resp); err != nil {
		return Response{}, err
	}

	var r chatResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decoding %s response: %w", c.name, err)
	}
	if len(r.Choices) == 0 {
		return Response{}, ErrNoChoices
	}

	return Response{
		Text:      r.Choices[0].Message.Content,
		TokensIn:  r.Usage.PromptTokens,
		TokensOut: r.Usage.CompletionTokens,
	}, nil
}

// checkStatus maps non-2xx answers to ErrRateLimited or *HTTPError.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", provider, ErrRateLimited)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b)), Provider: provider}
}
