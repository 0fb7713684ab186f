// Package ocr turns a decoded document image into Markdown by asking a
// vision model, one request per image.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/dococr/internal/ai"
	"github.com/local/dococr/internal/imageenc"
	mpkg "github.com/local/dococr/internal/metrics"
)

// Prompt is the fixed instruction sent with every image.
const Prompt = "Convert the content of this document image into GitHub Flavored Markdown format. " +
	"Maintain the original structure and formatting as closely as possible. " +
	"Include all text, tables, headings and lists. " +
	"Use appropriate Markdown syntax for headers, tables, and bullet points. " +
	"Do not add any additional commentary or description outside of the document's content."

// Fixed sampling parameters.
const (
	Temperature = 1.0
	MaxTokens   = 1024
	TopP        = 1.0
)

type Extractor struct {
	client  ai.Client
	model   string
	encoder *imageenc.Encoder
	timeout time.Duration
}

type Option func(*Extractor)

// WithEncoder replaces the default JPEG encoder.
func WithEncoder(enc *imageenc.Encoder) Option {
	return func(e *Extractor) {
		if enc != nil {
			e.encoder = enc
		}
	}
}

// WithTimeout bounds a single provider call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

func New(client ai.Client, model string, opts ...Option) *Extractor {
	e := &Extractor{
		client:  client,
		model:   model,
		encoder: imageenc.NewEncoder(imageenc.DefaultQuality),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model name used for requests.
func (e *Extractor) Model() string { return e.model }

// Provider returns the name of the underlying client.
func (e *Extractor) Provider() string { return e.client.Name() }

// do calls the client once, turning a panic inside it into an error.
func (e *Extractor) do(ctx context.Context, req ai.Request) (resp ai.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("provider", e.client.Name()).Interface("panic", r).Msg("ai client panicked")
			resp, err = ai.Response{}, fmt.Errorf("%w: %v", ErrClientPanic, r)
		}
	}()
	return e.client.Do(ctx, req)
}

// Extract sends img to the model and returns its Markdown unmodified.
// Every failure comes back as *Error with an empty string; nothing is retried.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (string, error) {
	payload, err := e.encoder.Encode(img)
	if err != nil {
		return "", &Error{Kind: KindEncode, Err: err}
	}
	mpkg.ObservePayload(len(payload))

	req := ai.Request{
		Model:       e.model,
		Prompt:      Prompt,
		ImageBase64: payload,
		ImageMIME:   imageenc.MIMEType,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		TopP:        TopP,
		Stream:      false,
		Stop:        nil,
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	provider := e.client.Name()
	start := time.Now()
	resp, err := e.do(ctx, req)
	dur := time.Since(start)

	if err != nil {
		mpkg.ObserveExtraction(provider, e.model, classify(err), dur)
		return "", &Error{Kind: KindRemote, Err: err}
	}
	if strings.TrimSpace(resp.Text) == "" {
		mpkg.ObserveExtraction(provider, e.model, "empty", dur)
		return "", &Error{Kind: KindEmpty, Err: ErrNoText}
	}

	mpkg.ObserveExtraction(provider, e.model, "success", dur)
	return resp.Text, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrClientPanic):
		return "panic"
	case ai.IsRateLimited(err):
		return "rate_limited"
	case ai.IsAuthError(err):
		return "auth"
	default:
		var httpErr *ai.HTTPError
		if errors.As(err, &httpErr) {
			return fmt.Sprintf("http_%d", httpErr.StatusCode)
		}
		return "transport"
	}
}
