// Package diagnostics renders a resolved build graph's diagnostic surface
// (external references, alias collisions, tag mismatches, and scheduling
// cycles) as either human-readable text or machine-readable JSON, with
// one file per format rather than one monolithic renderer.
package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/wharflab/stagebake/internal/schedule"
	"github.com/wharflab/stagebake/internal/stagegraph"
)

// Report is everything a generate run has to say about the graph it built,
// independent of how it gets rendered.
type Report struct {
	// FilesScanned is the number of build files discovered and parsed.
	FilesScanned int
	// StagesFound is the total stage count across all files.
	StagesFound int

	// External lists every reference that did not resolve to an internal
	// stage, classified as a base image or a build dependency.
	External []stagegraph.ExternalRef
	// Collisions lists every duplicate stage alias declaration.
	Collisions []stagegraph.AliasCollision
	// TagWarnings lists every local alias referenced with a mismatched tag.
	TagWarnings []stagegraph.TagWarning
	// Unreachable lists internal aliases with no internal dependents, sorted.
	// Populated only when the caller opts in (generate's --show-unreachable);
	// nil otherwise, in which case no section is rendered.
	Unreachable []string

	// Cycle is non-nil when batch scheduling found a dependency cycle.
	// A report with a non-nil Cycle has no usable schedule.
	Cycle *schedule.CycleError
}

// Reporter renders a Report to its configured output.
type Reporter interface {
	Report(r Report) error
}

// Format identifies an output format.
type Format string

const (
	// FormatText is human-readable terminal output.
	FormatText Format = "text"
	// FormatJSON is machine-readable JSON output.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string, defaulting empty to FormatText.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown diagnostics format: %q (valid: text, json)", s)
	}
}

// Options configures reporter creation.
type Options struct {
	Format Format
	Writer io.Writer
}

// New creates a Reporter for the given options.
func New(opts Options) (Reporter, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	switch opts.Format {
	case FormatText, "":
		return &TextReporter{w: opts.Writer}, nil
	case FormatJSON:
		return &JSONReporter{w: opts.Writer}, nil
	default:
		return nil, fmt.Errorf("unknown diagnostics format: %q", opts.Format)
	}
}

// GetWriter resolves an output path to a writer: "stdout", "stderr", or a
// file path to create. The returned close func is safe to call whenever
// the error is nil.
func GetWriter(path string) (io.Writer, func() error, error) {
	switch path {
	case "stdout", "":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	default:
		f, err := os.Create(path) //nolint:gosec // path is operator-supplied CLI/config input
		if err != nil {
			return nil, nil, fmt.Errorf("create diagnostics output file: %w", err)
		}
		return f, f.Close, nil
	}
}
