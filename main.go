// utoipauto discovers utoipa-marked endpoints, schemas, and responses in a
// Rust source tree and emits the registration manifest for the #[openapi]
// attribute.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/domenicquirl/utoipauto/internal/config"
	"github.com/domenicquirl/utoipauto/internal/link"
	"github.com/domenicquirl/utoipauto/internal/manifest"
	"github.com/domenicquirl/utoipauto/internal/match"
	"github.com/domenicquirl/utoipauto/internal/model"
	"github.com/domenicquirl/utoipauto/internal/modtree"
	"github.com/domenicquirl/utoipauto/internal/scan"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "splice" {
		if err := runSplice(os.Args[2:], os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("utoipauto", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configStr   string
		configFile  string
		tokens      bool
		verbose     bool
		showVersion bool
	)

	fs.StringVar(&configStr, "c", "", "configuration string (attribute form)")
	fs.StringVar(&configStr, "config", "", "configuration string (attribute form)")
	fs.StringVar(&configFile, "config-file", "", "TOML configuration file")
	fs.BoolVar(&tokens, "tokens", false, "emit the #[openapi] argument token form")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&verbose, "verbose", false, "verbose logging")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "utoipauto %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	cfg, err := loadConfig(configStr, configFile)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, verbose)

	m, diags, err := runPipeline(root, cfg, logger)
	if err != nil {
		return err
	}
	reportDiagnostics(logger, diags)

	if tokens {
		_, _ = fmt.Fprintln(stdout, manifest.Tokens(m))
		return nil
	}
	_, _ = fmt.Fprintln(stdout, manifest.Render(m))
	return nil
}

// loadConfig resolves the invocation configuration from the -config string,
// the -config-file TOML file, or the defaults.
func loadConfig(configStr, configFile string) (config.Config, error) {
	switch {
	case configStr != "" && configFile != "":
		return config.Config{}, fmt.Errorf("-config and -config-file are mutually exclusive")
	case configFile != "":
		return config.LoadFile(configFile)
	default:
		return config.ParseString(configStr)
	}
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: false,
	})
}

// runPipeline is the whole pass: match files, scan them concurrently, build
// the module tree, resolve, link external crates, and build the manifest.
// Diagnostics are returned rather than logged so the pass stays a pure
// function of (root, cfg).
func runPipeline(root string, cfg config.Config, logger *log.Logger) (model.Manifest, []model.Diagnostic, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return model.Manifest{}, nil, fmt.Errorf("resolving root: %w", err)
	}

	files, err := match.Files(root, cfg.Paths)
	if err != nil {
		return model.Manifest{}, nil, err
	}
	logger.Debug("matched files", "root", root, "count", len(files))

	reg := scan.DefaultRegistry(cfg)
	scans, diags := scanFilesConcurrent(root, files, reg)
	logger.Debug("scanned files", "parsed", len(scans), "skipped", len(diags))

	tree := modtree.Build(scans)
	logger.Debug("built module tree", "modules", tree.Modules())

	local, err := tree.Resolve(scans)
	if err != nil {
		return model.Manifest{}, nil, err
	}

	merged, err := link.Merge(root, local, cfg.Crates, reg)
	if err != nil {
		return model.Manifest{}, nil, err
	}
	diags = append(diags, merged.Diagnostics...)
	logger.Debug("linked symbols", "local", len(local), "total", len(merged.Symbols))

	return manifest.Build(merged.Symbols), diags, nil
}

func reportDiagnostics(logger *log.Logger, diags []model.Diagnostic) {
	for _, d := range diags {
		logger.Warn(d.Message, "code", d.Code, "path", d.Path)
	}
}

// scanFilesConcurrent parses the matched files across a worker pool. Each
// goroutine owns its parser; results are collected by original index so the
// output order never depends on scheduling.
func scanFilesConcurrent(root string, files []string, reg *scan.Registry) ([]model.FileScan, []model.Diagnostic) {
	type result struct {
		index int
		fs    model.FileScan
		diag  *model.Diagnostic
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parser
			parser := scan.NewParser()

			for idx := range work {
				rel := files[idx]
				source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
				if err != nil {
					results <- result{index: idx, diag: &model.Diagnostic{
						Severity: model.SeverityWarning,
						Code:     "read_skipped",
						Message:  err.Error(),
						Path:     rel,
						Cause:    err,
					}}
					continue
				}
				fs, err := scan.File(reg, parser, source, rel)
				if err != nil {
					results <- result{index: idx, diag: &model.Diagnostic{
						Severity: model.SeverityWarning,
						Code:     "parse_skipped",
						Message:  err.Error(),
						Path:     rel,
						Cause:    err,
					}}
					continue
				}
				results <- result{index: idx, fs: fs}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]*model.FileScan, len(files))
	diagIndexed := make([]*model.Diagnostic, len(files))
	for r := range results {
		if r.diag != nil {
			diagIndexed[r.index] = r.diag
			continue
		}
		fs := r.fs
		indexed[r.index] = &fs
	}

	var scans []model.FileScan
	var diags []model.Diagnostic
	for i := range files {
		if indexed[i] != nil {
			scans = append(scans, *indexed[i])
		}
		if diagIndexed[i] != nil {
			diags = append(diags, *diagIndexed[i])
		}
	}

	return scans, diags
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-c": true, "--c": true,
	"-config": true, "--config": true,
	"-config-file": true, "--config-file": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
