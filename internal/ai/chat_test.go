package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}

		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if string(raw["stop"]) != "null" {
			t.Errorf("expected stop=null, got %s", raw["stop"])
		}
		if string(raw["stream"]) != "false" {
			t.Errorf("expected stream=false, got %s", raw["stream"])
		}
		if string(raw["temperature"]) != "1" || string(raw["top_p"]) != "1" {
			t.Errorf("unexpected sampling params: temperature=%s top_p=%s", raw["temperature"], raw["top_p"])
		}
		if string(raw["max_tokens"]) != "1024" {
			t.Errorf("expected max_tokens=1024, got %s", raw["max_tokens"])
		}

		var msgs []chatMessage
		if err := json.Unmarshal(raw["messages"], &msgs); err != nil {
			t.Errorf("failed to decode messages: %v", err)
			return
		}
		if len(msgs) != 1 || msgs[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", msgs)
			return
		}
		parts := msgs[0].Content
		if len(parts) != 2 {
			t.Errorf("expected 2 content parts, got %d", len(parts))
			return
		}
		if parts[0].Type != "text" || parts[0].Text != "transcribe" {
			t.Errorf("unexpected text part: %+v", parts[0])
		}
		if parts[1].Type != "image_url" || parts[1].ImageURL == nil ||
			parts[1].ImageURL.URL != "data:image/jpeg;base64,QUJD" {
			t.Errorf("unexpected image part: %+v", parts[1])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"# Title\n\nBody"}}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`))
	}))
	defer server.Close()

	client := NewChatClient(ChatOptions{APIKey: "test-key", BaseURL: server.URL + "/"})
	resp, err := client.Do(context.Background(), Request{
		Model:       "vision-model",
		Prompt:      "transcribe",
		ImageBase64: "QUJD",
		ImageMIME:   "image/jpeg",
		Temperature: 1,
		MaxTokens:   1024,
		TopP:        1,
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.Text != "# Title\n\nBody" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.TokensIn != 12 || resp.TokensOut != 5 {
		t.Errorf("unexpected usage: %+v", resp)
	}
}

func TestChatClient_Do_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				if !errors.As(err, &httpErr) {
					t.Fatalf("expected *HTTPError, got %T: %v", err, err)
				}
				if httpErr.StatusCode != 401 || httpErr.Provider != "groq" {
					t.Errorf("unexpected HTTPError: %+v", httpErr)
				}
				if !strings.Contains(err.Error(), "invalid api key") {
					t.Errorf("expected body in message, got %v", err)
				}
				if !IsAuthError(err) {
					t.Error("expected IsAuthError to be true")
				}
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				if !IsRateLimited(err) {
					t.Errorf("expected ErrRateLimited, got %v", err)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "502") {
					t.Errorf("expected status 502 in error, got: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": "invalid api key"}`))
			}))
			defer server.Close()

			client := NewChatClient(ChatOptions{APIKey: "bad-key", BaseURL: server.URL})
			_, err := client.Do(context.Background(), Request{Model: "m", Prompt: "p"})
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestChatClient_Do_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewChatClient(ChatOptions{BaseURL: server.URL})
	if _, err := client.Do(context.Background(), Request{}); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestChatClient_Do_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewChatClient(ChatOptions{BaseURL: url})
	_, err := client.Do(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "sending request") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewForEngine(t *testing.T) {
	tests := []struct {
		engine string
		name   string
	}{
		{"", "groq"},
		{"groq", "groq"},
		{"OpenAI", "openai"},
		{"anthropic", "anthropic"},
	}
	for _, tt := range tests {
		c, err := NewForEngine(tt.engine, "k", "", nil)
		if err != nil {
			t.Fatalf("engine %q: %v", tt.engine, err)
		}
		if c.Name() != tt.name {
			t.Errorf("engine %q: expected %s, got %s", tt.engine, tt.name, c.Name())
		}
	}

	if _, err := NewForEngine("bard", "k", "", nil); err == nil {
		t.Error("expected error for unknown engine")
	}
}
