package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/dococr/internal/ai"
	cfgpkg "github.com/local/dococr/internal/config"
	"github.com/local/dococr/internal/filetype"
	"github.com/local/dococr/internal/imageenc"
	"github.com/local/dococr/internal/ocr"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "Write Markdown to this file instead of stdout")
	quiet := fs.Bool("q", false, "Quiet mode (suppress progress output)")
	verbose := fs.Bool("v", false, "Verbose mode (extra details to stderr)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `extract - Transcribe a document image to Markdown with a vision model

Usage: extract [options] <image.jpg|image.jpeg|image.png>

Environment:
  AI_ENGINE         groq (default), openai or anthropic
  GROQ_API_KEY      API key for the default engine

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one image path")
	}
	path := fs.Arg(0)

	lvl := zerolog.WarnLevel
	if *verbose {
		lvl = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).Level(lvl).With().Timestamp().Logger()

	report := NewReporter(stderr, *quiet, *verbose)

	if !filetype.AllowedExtension(path) {
		return fmt.Errorf("unsupported file extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	info, err := filetype.New().DetectBytes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !info.Supported {
		return fmt.Errorf("%s: %s", path, info.Description)
	}

	cfg, err := cfgpkg.Load()
	if err != nil {
		return err
	}

	img, format, err := imageenc.DecodeLimited(data, cfg.AI.MaxPixels)
	if err != nil {
		return err
	}
	b := img.Bounds()
	report.Verbose("Decoded %s image %dx%d\n", format, b.Dx(), b.Dy())

	provider := cfg.AI.Active()
	client, err := ai.NewForEngine(cfg.AI.Engine, provider.APIKey, provider.BaseURL, &http.Client{})
	if err != nil {
		return err
	}

	report.Progress("Processing: %s (%s/%s)\n", path, client.Name(), provider.Model)

	extractor := ocr.New(client, provider.Model,
		ocr.WithEncoder(imageenc.NewEncoder(cfg.AI.JPEGQuality)),
		ocr.WithTimeout(cfg.AI.RequestTimeout),
	)
	text, err := extractor.Extract(context.Background(), img)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	report.Verbose("Wrote Markdown to: %s\n", *output)
	return nil
}
