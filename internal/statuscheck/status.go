package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/local/dococr/internal/ai"
)

// Checker probes the configured vision provider for the status endpoint.
// It never blocks extraction; a missing key only shows up here and on the
// first failed request.
type Checker struct {
	engine     string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Options configures the Checker.
type Options struct {
	Engine     string
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles the provider status with what the process is configured for.
type Summary struct {
	Engine   string `json:"engine"`
	Model    string `json:"model"`
	Provider Status `json:"provider"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	engine := strings.ToLower(strings.TrimSpace(opts.Engine))
	if engine == "" {
		engine = "groq"
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		switch engine {
		case "openai":
			base = ai.OpenAIBaseURL
		case "anthropic":
			base = ai.AnthropicBaseURL + "/v1"
		default:
			base = ai.GroqBaseURL
		}
	} else if engine == "anthropic" && !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return &Checker{
		engine:     engine,
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    base,
		model:      opts.Model,
		httpClient: client,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Engine:   c.engine,
		Model:    c.model,
		Provider: c.checkProvider(ctx),
	}
}

func (c *Checker) checkProvider(ctx context.Context) Status {
	if c.apiKey == "" {
		return Status{OK: false, Message: "API key missing"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if c.engine == "anthropic" {
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
