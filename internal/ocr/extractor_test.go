package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/local/dococr/internal/ai"
	"github.com/local/dococr/internal/imageenc"
)

type fakeClient struct {
	text  string
	err   error
	calls int
	last  ai.Request
	wait  bool
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Do(ctx context.Context, req ai.Request) (ai.Response, error) {
	f.calls++
	f.last = req
	if f.wait {
		<-ctx.Done()
		return ai.Response{}, ctx.Err()
	}
	if f.err != nil {
		return ai.Response{}, f.err
	}
	return ai.Response{Text: f.text}, nil
}

func redSquare() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 0xff, 0xff
	}
	return img
}

func TestExtract_Hello(t *testing.T) {
	fc := &fakeClient{text: "Hello"}
	got, err := New(fc, "vision-model").Extract(context.Background(), redSquare())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got != "Hello" {
		t.Errorf("expected Hello, got %q", got)
	}
}

func TestExtract_ReturnsTextVerbatim(t *testing.T) {
	for _, text := range []string{"# Title\n\nBody", "  padded  \n", "<b>raw</b>"} {
		fc := &fakeClient{text: text}
		got, err := New(fc, "m").Extract(context.Background(), redSquare())
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", text, err)
		}
		if got != text {
			t.Errorf("expected %q, got %q", text, got)
		}
	}
}

func TestExtract_RequestShape(t *testing.T) {
	fc := &fakeClient{text: "ok"}
	if _, err := New(fc, "llama-vision").Extract(context.Background(), redSquare()); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	req := fc.last
	if fc.calls != 1 {
		t.Errorf("expected exactly one call, got %d", fc.calls)
	}
	if req.Model != "llama-vision" {
		t.Errorf("unexpected model %q", req.Model)
	}
	if req.Prompt != Prompt || !strings.Contains(req.Prompt, "GitHub Flavored Markdown") {
		t.Errorf("unexpected prompt %q", req.Prompt)
	}
	if req.Temperature != 1 || req.MaxTokens != 1024 || req.TopP != 1 || req.Stream || req.Stop != nil {
		t.Errorf("unexpected sampling params: %+v", req)
	}
	if req.ImageMIME != "image/jpeg" {
		t.Errorf("unexpected MIME %q", req.ImageMIME)
	}

	raw, err := imageenc.DecodeBase64(req.ImageBase64)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	w, h, err := imageenc.Dimensions(raw)
	if err != nil {
		t.Fatalf("payload is not JPEG: %v", err)
	}
	if w != 10 || h != 10 {
		t.Errorf("expected 10x10 payload, got %dx%d", w, h)
	}
}

func TestExtract_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		fc := &fakeClient{text: text}
		got, err := New(fc, "m").Extract(context.Background(), redSquare())
		if got != "" {
			t.Errorf("expected absent result, got %q", got)
		}
		if !errors.Is(err, ErrNoText) {
			t.Fatalf("expected ErrNoText, got %v", err)
		}
		if KindOf(err) != KindEmpty {
			t.Errorf("expected KindEmpty, got %v", KindOf(err))
		}
		if !strings.Contains(err.Error(), "no text found in image") {
			t.Errorf("unexpected message %q", err.Error())
		}
	}
}

func TestExtract_RemoteError(t *testing.T) {
	cause := &ai.HTTPError{StatusCode: 401, Body: "invalid api key", Provider: "groq"}
	fc := &fakeClient{err: cause}

	got, err := New(fc, "m").Extract(context.Background(), redSquare())
	if got != "" {
		t.Errorf("expected absent result, got %q", got)
	}
	if KindOf(err) != KindRemote {
		t.Fatalf("expected KindRemote, got %v (%v)", KindOf(err), err)
	}
	if errors.Is(err, ErrNoText) {
		t.Error("remote failure must not look like an empty result")
	}
	var httpErr *ai.HTTPError
	if !errors.As(err, &httpErr) || httpErr != cause {
		t.Errorf("expected cause to be reachable via errors.As, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if fc.calls != 1 {
		t.Errorf("expected no retry, got %d calls", fc.calls)
	}
}

func TestExtract_Timeout(t *testing.T) {
	fc := &fakeClient{wait: true}
	_, err := New(fc, "m", WithTimeout(20*time.Millisecond)).Extract(context.Background(), redSquare())
	if KindOf(err) != KindRemote || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected remote deadline error, got %v", err)
	}
}

func TestExtract_EncodeFailure(t *testing.T) {
	fc := &fakeClient{text: "never"}
	tooWide := image.NewGray(image.Rect(0, 0, 1<<16, 1))

	_, err := New(fc, "m").Extract(context.Background(), tooWide)
	if KindOf(err) != KindEncode {
		t.Fatalf("expected KindEncode, got %v", err)
	}
	if fc.calls != 0 {
		t.Errorf("no request should be sent when encoding fails")
	}
}

func TestExtract_AlphaSourceSendsOpaqueJPEG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, A: 0})
		}
	}
	fc := &fakeClient{text: "ok"}
	if _, err := New(fc, "m", WithEncoder(imageenc.NewEncoder(95))).Extract(context.Background(), src); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	raw, _ := imageenc.DecodeBase64(fc.last.ImageBase64)
	img, _, err := imageenc.Decode(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("alpha should be dropped, not blended: got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestKind_String(t *testing.T) {
	if KindEmpty.String() != "empty" || KindRemote.String() != "remote" || KindEncode.String() != "encode" {
		t.Error("unexpected kind names")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("plain errors have no kind")
	}
}

type panickingClient struct{}

func (panickingClient) Name() string { return "broken" }

func (panickingClient) Do(context.Context, ai.Request) (ai.Response, error) {
	panic("nil map write")
}

func TestExtract_ClientPanicIsRemoteError(t *testing.T) {
	got, err := New(panickingClient{}, "m").Extract(context.Background(), redSquare())
	if got != "" {
		t.Errorf("expected absent result, got %q", got)
	}
	if KindOf(err) != KindRemote {
		t.Fatalf("expected remote kind, got %v (%v)", KindOf(err), err)
	}
	if !errors.Is(err, ErrClientPanic) || !strings.Contains(err.Error(), "nil map write") {
		t.Errorf("unexpected error %v", err)
	}
	if classify(errors.Unwrap(err)) != "panic" {
		t.Errorf("unexpected metrics label %q", classify(errors.Unwrap(err)))
	}
}
