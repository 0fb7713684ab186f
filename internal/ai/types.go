package ai

import (
	"context"
	"errors"
	"fmt"
)

// Request is one vision completion: a single user turn made of an
// instruction and one embedded image.
type Request struct {
	Model       string
	Prompt      string
	ImageBase64 string // Base64 encoded image
	ImageMIME   string // Image MIME type (image/jpeg)
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stream      bool
	Stop        []string
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client sends one request and waits for one non-streamed response.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrNoChoices   = errors.New("no choices in response")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// HTTPError represents an HTTP status error from an AI provider.
type HTTPError struct {
	StatusCode int
	Body       string
	Provider   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

// IsAuthError reports whether err is a 401/403 from a provider.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 401 || httpErr.StatusCode == 403
	}
	return false
}
