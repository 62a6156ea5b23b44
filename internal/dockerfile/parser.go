// Package dockerfile parses a single build file into BuildKit's typed
// instruction model. It does no graph resolution of its own — it exists so
// that every other package works against instructions.Stage/Command instead
// of raw lines.
package dockerfile

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// ParseResult contains the parsed build file information.
type ParseResult struct {
	// TotalLines is the total number of lines in the file.
	TotalLines int
	// BlankLines is the number of blank (empty or whitespace-only) lines.
	BlankLines int
	// CommentLines is the number of comment lines (starting with #).
	CommentLines int
	// AST is the parsed build-file AST from BuildKit.
	AST *parser.Result
	// Stages is the ordered list of stages BuildKit's instruction layer
	// resolved from the AST. Anonymous stages have an empty Name.
	Stages []instructions.Stage
}

// openFile opens a build file path for reading.
// If path is "-", returns os.Stdin and a no-op closer.
func openFile(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// ParseFile parses a build file at path and returns the parse result.
func ParseFile(_ context.Context, path string) (*ParseResult, error) {
	r, closer, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer() }()

	return Parse(r)
}

// Parse parses a build file from a reader.
func Parse(r io.Reader) (*ParseResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	stats := countLines(content)

	ast, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	stages, _, err := instructions.Parse(ast.AST, nil)
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		TotalLines:   stats.total,
		BlankLines:   stats.blank,
		CommentLines: stats.comments,
		AST:          ast,
		Stages:       stages,
	}, nil
}

// LooksLikeBuildFile reports whether content contains a recognizable
// stage-introduction directive before any non-comment, non-blank,
// non-FROM instruction. It is a cheap sniff used by discovery to decide
// whether an arbitrarily-named file should be treated as a build file,
// without paying for a full parse of every file in the tree.
func LooksLikeBuildFile(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if pending.Len() > 0 {
			pending.WriteString(trimmed)
			line = pending.String()
			pending.Reset()
			trimmed = strings.TrimSpace(line)
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasSuffix(trimmed, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmed, "\\"))
			continue
		}

		return len(trimmed) >= 4 && strings.EqualFold(trimmed[:4], "from")
	}
	return false
}

// lineStats contains counts of different line types.
type lineStats struct {
	total    int
	blank    int
	comments int
}

// countLines counts total, blank, and comment lines in content.
func countLines(content []byte) lineStats {
	var stats lineStats
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		stats.total++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			stats.blank++
		} else if strings.HasPrefix(line, "#") {
			stats.comments++
		}
	}

	return stats
}
