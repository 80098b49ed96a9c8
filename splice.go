package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/domenicquirl/utoipauto/internal/manifest"
	"github.com/domenicquirl/utoipauto/internal/model"
)

const (
	sentinelStart = "// utoipauto:start"
	sentinelEnd   = "// utoipauto:end"
)

// runSplice implements the `utoipauto splice` subcommand, which writes (or
// updates) the generated registration tokens in a target source file.
func runSplice(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("utoipauto splice", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		target     string
		configStr  string
		configFile string
		dryRun     bool
		verbose    bool
	)
	fs.StringVar(&target, "target", "", "file to splice the generated block into")
	fs.StringVar(&configStr, "c", "", "configuration string (attribute form)")
	fs.StringVar(&configStr, "config", "", "configuration string (attribute form)")
	fs.StringVar(&configFile, "config-file", "", "TOML configuration file")
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&verbose, "verbose", false, "verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: utoipauto splice -target <file> [flags] [root]

Scan the source tree rooted at root (default ".") and splice the generated
registration tokens into the target file. The block is wrapped in sentinel
comments so it can be updated in place on subsequent runs without touching
surrounding content.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if target == "" && !dryRun {
		return fmt.Errorf("splice: -target is required")
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

	block := generateBlock(m)

	// --dry-run with no target: just print the block itself.
	if dryRun && target == "" {
		_, _ = fmt.Fprintln(stdout, block)
		return nil
	}

	existing, _ := os.ReadFile(target)
	updated := applyBlock(string(existing), block)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(target, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote registration tokens to %s\n", target)
	return nil
}

// generateBlock returns the full sentinel-wrapped token block.
func generateBlock(m model.Manifest) string {
	return sentinelStart + "\n" + manifest.Tokens(m) + "\n" + sentinelEnd
}

// applyBlock inserts block into content, replacing an existing sentinel
// block if present or appending if not.
func applyBlock(content, block string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + block + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + block + "\n"
}
