// Package main is the entry point for the nbweave notebook tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"nbweave/internal/config"
	"nbweave/internal/format"
	"nbweave/internal/kernel"
	"nbweave/internal/kernel/discovery"
	"nbweave/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logLevel    string
		development bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flag.BoolVar(&development, "dev", false, "Log in human-readable development format")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = usage
	flag.Parse()

	if showHelp {
		flag.Usage()
		return 0
	}
	if showVersion {
		fmt.Printf("nbweave %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	logger, err := logging.New(cfg.LogLevel, development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Handle signals for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	switch args[0] {
	case "inspect":
		return runInspect(ctx, cfg, logger, args[1:])
	case "convert":
		return runConvert(ctx, cfg, logger, args[1:])
	case "kernels":
		return runKernels(ctx, cfg, logger, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		flag.Usage()
		return 2
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "nbweave - Jupyter notebook engine for editor integrations\n\n")
	fmt.Fprintf(os.Stderr, "Usage: nbweave [options] <command> [arguments]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  inspect <notebook>...    Summarize notebooks without modifying them\n")
	fmt.Fprintf(os.Stderr, "  convert <notebook>       Round-trip a notebook through the codec\n")
	fmt.Fprintf(os.Stderr, "  kernels                  List locally installed kernels\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  nbweave inspect analysis.ipynb       Show format, cells and kernel metadata\n")
	fmt.Fprintf(os.Stderr, "  nbweave convert -o out.ipynb in.ipynb Re-serialize a notebook\n")
	fmt.Fprintf(os.Stderr, "  nbweave kernels                      List kernelspecs found on this machine\n")
}

func newCodec(cfg *config.Config, logger *zap.Logger) *format.Codec {
	return format.NewCodec(
		format.WithPreferredLanguage(cfg.PreferredLanguage),
		format.WithDefaultIndent(cfg.DefaultIndent),
		format.WithLogger(logger),
	)
}

// runInspect prints a one-block summary per notebook: the wire format
// version, cell count, language, kernelspec, and how many outputs would
// pass through untranslated.
func runInspect(ctx context.Context, cfg *config.Config, logger *zap.Logger, paths []string) int {
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: inspect needs at least one notebook path")
		return 2
	}

	failed := false
	for _, path := range paths {
		if ctx.Err() != nil {
			return 1
		}
		if err := inspectOne(cfg, logger, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func inspectOne(cfg *config.Config, logger *zap.Logger, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	preview, err := format.Sniff(data)
	if err != nil {
		return err
	}

	// A full decode proves the notebook survives the round trip, not just
	// the cheap path queries.
	codec := newCodec(cfg, logger)
	doc, err := codec.Deserialize("file://"+path, data)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  nbformat:    %d.%d\n", preview.NBFormat, preview.NBFormatMinor)
	fmt.Printf("  cells:       %d\n", doc.CellCount())
	fmt.Printf("  language:    %s\n", orDash(doc.Language()))
	if preview.KernelSpecName != "" {
		fmt.Printf("  kernelspec:  %s (%s)\n", preview.KernelSpecName, orDash(preview.KernelDisplayName))
	} else {
		fmt.Printf("  kernelspec:  -\n")
	}
	fmt.Printf("  indent:      %q\n", doc.Indent())
	if n := codec.FallbackCount(); n > 0 {
		fmt.Printf("  passthrough: %d unrecognized outputs\n", n)
	}
	return nil
}

// runConvert re-serializes a notebook through the codec. With no output
// path the result goes to stdout, so the default invocation never touches
// the input file.
func runConvert(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	outPath := fs.String("o", "", "Output path (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: convert needs exactly one notebook path")
		return 2
	}
	if ctx.Err() != nil {
		return 1
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	codec := newCodec(cfg, logger)
	doc, err := codec.Deserialize("file://"+path, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	out, err := codec.Serialize(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *outPath == "" {
		if _, err := os.Stdout.Write(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("notebook converted",
		zap.String("input", path),
		zap.String("output", *outPath),
		zap.Int("bytes", len(out)))
	return 0
}

// runKernels lists every kernelspec the scanner can find, one row per
// kernel, in discovery order.
func runKernels(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "Error: kernels takes no arguments")
		return 2
	}

	scanner := discovery.NewScanner(
		discovery.WithExtraRoots(cfg.KernelSpecPaths...),
		discovery.WithLogger(logger),
	)
	pool, err := scanner.ListLocalKernels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(pool) == 0 {
		fmt.Println("No kernels found.")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLANGUAGE\tDISPLAY NAME\tLOCATION")
	for _, meta := range pool {
		name, location := "-", "-"
		if spec, ok := meta.(kernel.KernelSpecConnection); ok {
			name = spec.Spec.Name
			if spec.Spec.Path != "" {
				location = spec.Spec.Path
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name, orDash(meta.Language()), orDash(meta.DisplayName()), location)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
