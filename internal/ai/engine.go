package ai

import (
	"fmt"
	"net/http"
	"strings"
)

// NewForEngine builds the client for engine ("groq", "openai" or
// "anthropic"). An empty baseURL selects the engine's public endpoint.
func NewForEngine(engine, apiKey, baseURL string, hc *http.Client) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "groq":
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		return NewChatClient(ChatOptions{Name: "groq", APIKey: apiKey, BaseURL: baseURL, HTTPClient: hc}), nil
	case "openai":
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
		return NewChatClient(ChatOptions{Name: "openai", APIKey: apiKey, BaseURL: baseURL, HTTPClient: hc}), nil
	case "anthropic":
		return NewAnthropicClient(apiKey, baseURL, hc), nil
	default:
		return nil, fmt.Errorf("unknown ai engine: %s", engine)
	}
}
