package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"linemap/internal/domain"
	"linemap/internal/layout"
	"linemap/pkg/linedoc"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "linemap-layout:", err)
		os.Exit(1)
	}
}

// run lays out one line document and writes the diagram as JSON to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("linemap-layout", flag.ContinueOnError)
	fs.SetOutput(stderr)

	linePath := fs.String("line", "", "Path to the line-data XML document (required)")
	stylePath := fs.String("style", "", "Path to the style XML document; built-in defaults when empty")
	begin := fs.Int("begin", 0, "First station index; negative counts from the end")
	end := fs.Int("end", -1, "Last station index; negative counts from the end")
	base := fs.String("base", "", "Station index that reads 0 minutes; defaults to the begin station")
	minWidth := fs.Int("min-width", layout.DefaultMinWidth, "Minimum diagram width")
	minHeight := fs.Int("min-height", layout.DefaultMinHeight, "Minimum diagram height")
	compact := fs.Bool("compact", false, "Write single-line JSON")
	verbose := fs.Bool("v", false, "Log parsing details to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *linePath == "" {
		fs.Usage()
		return errors.New("-line is required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	parser := linedoc.NewParser(logger)

	info, _, err := parser.LoadLineInfo(*linePath)
	if err != nil {
		return err
	}

	style := domain.DefaultStyle()
	if *stylePath != "" {
		if style, err = parser.LoadStyle(*stylePath); err != nil {
			return err
		}
	}

	span := domain.NewSpan(*begin, *end)
	if *base != "" {
		b, err := strconv.Atoi(*base)
		if err != nil {
			return fmt.Errorf("invalid -base %q: %w", *base, err)
		}
		span = span.WithBase(b)
	}

	diagram, err := layout.New(info, style, *minWidth, *minHeight).Layout(span)
	if err != nil {
		return err
	}
	return layout.NewJSONRenderer(stdout, !*compact).Render(ctx, diagram)
}
