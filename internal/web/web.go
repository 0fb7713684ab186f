package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/local/dococr/internal/filetype"
	"github.com/local/dococr/internal/imageenc"
	logpkg "github.com/local/dococr/internal/logger"
	mpkg "github.com/local/dococr/internal/metrics"
	"github.com/local/dococr/internal/ocr"
)

//go:embed templates/*.html
var templateFS embed.FS

// Extractor is the OCR capability the shell needs.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (string, error)
}

type Options struct {
	MaxUploadMB int
	// MaxPixels caps decoded width*height; <= 0 uses imageenc.DefaultMaxPixels.
	MaxPixels int
}

type Web struct {
	tpl       *template.Template
	ext       Extractor
	detector  *filetype.Detector
	md        goldmark.Markdown
	maxUpload int64
	maxPixels int
}

func New(ext Extractor, opts Options) *Web {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}
	return &Web{
		tpl:      template.Must(template.ParseFS(templateFS, "templates/*.html")),
		ext:      ext,
		detector: filetype.New(),
		// Raw HTML in model output is passed through as is.
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		maxUpload: int64(opts.MaxUploadMB) << 20,
		maxPixels: opts.MaxPixels,
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", w.handleIndex)
	mux.HandleFunc("/extract", w.handleExtract)
	mux.HandleFunc("/api/extract", w.handleAPIExtract)
	mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusOK)
		_, _ = wr.Write([]byte("ok"))
	})
}

type pageData struct {
	RequestID string
	Accept    string
	FileName  string
	Preview   template.URL
	Error     string
	Markdown  template.HTML
}

func (w *Web) render(wr http.ResponseWriter, status int, data pageData) {
	data.Accept = ".jpg,.jpeg,.png"
	var buf bytes.Buffer
	if err := w.tpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		http.Error(wr, "template error", http.StatusInternalServerError)
		return
	}
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	wr.WriteHeader(status)
	_, _ = buf.WriteTo(wr)
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(wr, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.render(wr, http.StatusOK, pageData{})
}

// upload is one processed form submission.
type upload struct {
	requestID string
	fileName  string
	mime      string
	data      []byte
	markdown  string
}

// uploadError carries the HTTP status and the message shown to the user.
type uploadError struct {
	status int
	reason string
	msg    string
	kind   string
}

func (e *uploadError) Error() string { return e.msg }

func (w *Web) handleExtract(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	up, uerr := w.process(wr, r)
	data := pageData{RequestID: up.requestID, FileName: up.fileName}
	if up.mime != "" && len(up.data) > 0 {
		data.Preview = template.URL(imageenc.DataURL(up.mime, imageenc.EncodeBytes(up.data)))
	}
	if uerr != nil {
		data.Error = uerr.msg
		w.render(wr, uerr.status, data)
		return
	}

	var html bytes.Buffer
	if err := w.md.Convert([]byte(up.markdown), &html); err != nil {
		data.Error = fmt.Sprintf("could not render result: %v", err)
		w.render(wr, http.StatusInternalServerError, data)
		return
	}
	data.Markdown = template.HTML(html.String())
	w.render(wr, http.StatusOK, data)
}

type apiResponse struct {
	RequestID string `json:"request_id"`
	Markdown  string `json:"markdown,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

func (w *Web) handleAPIExtract(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	up, uerr := w.process(wr, r)
	resp := apiResponse{RequestID: up.requestID, Markdown: up.markdown}
	status := http.StatusOK
	if uerr != nil {
		resp.Error = uerr.msg
		resp.Kind = uerr.kind
		status = uerr.status
	}
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	_ = json.NewEncoder(wr).Encode(resp)
}

// process runs one upload through validation, decoding and extraction.
func (w *Web) process(wr http.ResponseWriter, r *http.Request) (upload, *uploadError) {
	up := upload{requestID: uuid.NewString()}
	l := logpkg.WithRequest(up.requestID)

	reject := func(status int, reason, msg string) (upload, *uploadError) {
		mpkg.IncRejected(reason)
		l.Warn().Str("reason", reason).Str("file", up.fileName).Msg(msg)
		return up, &uploadError{status: status, reason: reason, msg: msg, kind: "upload"}
	}

	if r.ContentLength > w.maxUpload {
		return reject(http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("file is larger than %d MB", w.maxUpload>>20))
	}
	r.Body = http.MaxBytesReader(wr, r.Body, w.maxUpload)
	if err := r.ParseMultipartForm(w.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return reject(http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("file is larger than %d MB", w.maxUpload>>20))
		}
		return reject(http.StatusBadRequest, "form", "invalid multipart form")
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return reject(http.StatusBadRequest, "missing", "missing file")
	}
	defer file.Close()
	up.fileName = hdr.Filename

	if !filetype.AllowedExtension(hdr.Filename) {
		return reject(http.StatusBadRequest, "extension", "only .jpg, .jpeg and .png files are accepted")
	}

	up.data, err = io.ReadAll(file)
	if err != nil {
		return reject(http.StatusBadRequest, "read", "could not read upload")
	}

	info, err := w.detector.DetectBytes(up.data)
	if err != nil {
		return reject(http.StatusBadRequest, "empty", "uploaded file is empty")
	}
	if !info.Supported {
		return reject(http.StatusBadRequest, "content", info.Description)
	}
	up.mime = info.MIMEType

	img, format, err := imageenc.DecodeLimited(up.data, w.maxPixels)
	if errors.Is(err, imageenc.ErrTooManyPixels) {
		return reject(http.StatusBadRequest, "too_many_pixels", "image dimensions are too large")
	}
	if err != nil {
		return reject(http.StatusBadRequest, "decode", "could not decode image")
	}

	b := img.Bounds()
	l.Info().
		Str("file", up.fileName).
		Str("format", format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("bytes", len(up.data)).
		Msg("upload accepted")

	start := time.Now()
	text, err := w.ext.Extract(r.Context(), img)
	if err != nil {
		logExtractFailure(l, err, time.Since(start))
		return up, &uploadError{status: http.StatusBadGateway, reason: "extract", msg: err.Error(), kind: ocr.KindOf(err).String()}
	}

	l.Info().Dur("duration", time.Since(start)).Int("chars", len(text)).Msg("extraction done")
	up.markdown = text
	return up, nil
}

func logExtractFailure(l zerolog.Logger, err error, dur time.Duration) {
	ev := l.Error()
	if ocr.KindOf(err) == ocr.KindEmpty {
		ev = l.Warn()
	}
	ev.Err(err).Str("kind", ocr.KindOf(err).String()).Dur("duration", dur).Msg("extraction failed")
}
