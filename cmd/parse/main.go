// Command parse runs the health-data pipeline on one local file or URL and
// prints or exports the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"medparse/internal/app"
	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/export"
	"medparse/internal/logging"
	"medparse/internal/pipeline"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	file         string
	visionParser string
	visionModel  string
	visionAPIKey string
	visionAPIURL string
	format       string
	out          string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.StringVar(&o.file, "file", "", "path or http(s) URL of the document to parse")
	fs.StringVar(&o.visionParser, "vision-parser", "", "vision parser (Ollama, OpenAI); empty uses the configured default")
	fs.StringVar(&o.visionModel, "vision-model", "", "vision model")
	fs.StringVar(&o.visionAPIKey, "vision-api-key", "", "API key for the vision parser")
	fs.StringVar(&o.visionAPIURL, "vision-api-url", "", "API URL override for the vision parser")
	fs.StringVar(&o.format, "format", "json", "output format: json, csv or xlsx")
	fs.StringVar(&o.out, "out", "", "output file; stdout when empty")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.file == "" {
		return o, fmt.Errorf("-file is required")
	}
	switch o.format {
	case "json", "csv", "xlsx":
	default:
		return o, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

func (o options) request() pipeline.Request {
	req := pipeline.Request{File: o.file}
	if o.visionParser != "" {
		req.VisionParser = &pipeline.ParserOptions{
			Parser: o.visionParser,
			Model:  o.visionModel,
			APIKey: o.visionAPIKey,
			APIURL: o.visionAPIURL,
		}
	}
	return req
}

func run(args []string, stdout io.Writer) error {
	_ = godotenv.Load()

	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := a.Pipeline.ParseHealthData(ctx, opts.request())
	if err != nil {
		return err
	}

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", opts.out, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := write(out, opts.format, path.Base(opts.file), res); err != nil {
		return err
	}
	if opts.out != "" {
		log.WithFields(log.Fields{"out": opts.out, "format": opts.format}).Info("parse: result written")
	}
	return nil
}

func write(out io.Writer, format, name string, res *domain.Result) error {
	switch format {
	case "csv":
		return export.WriteCSV(out, name, res)
	case "xlsx":
		return export.WriteXLSX(out, name, res)
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
}
