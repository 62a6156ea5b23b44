// Package discovery walks a directory tree to find build files.
//
// Qualification is content-based, not name-based: any file whose contents
// begin with a recognizable stage-introduction directive is treated as a
// build file, regardless of its name or extension. Matching by
// Dockerfile/Containerfile naming convention is a reasonable default when
// a tool is invoked on files the user names explicitly, but it isn't
// enough for "walk this directory and find every build file."
package discovery

import (
	"cmp"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wharflab/stagebake/internal/dockerfile"
)

// DiscoveredFile is one build file found during the walk.
type DiscoveredFile struct {
	// Path is the file's path, relative to root.
	Path string
	// AbsPath is the file's absolute path, used for reading.
	AbsPath string
}

// Options configures the walk.
type Options struct {
	// ExcludePatterns are doublestar glob patterns to exclude from the
	// walk (matched against the path relative to root).
	ExcludePatterns []string
	// MaxFileSize caps how large a file sniffing/parsing will consider.
	// Zero means no cap.
	MaxFileSize int64
}

// Discover walks root, sniffing every regular file's content and
// returning the ones that look like build files, sorted by path for
// deterministic processing order.
func Discover(root string, opts Options) ([]DiscoveredFile, error) {
	var results []DiscoveredFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if isExcluded(rel, opts.ExcludePatterns) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		if !dockerfile.LooksLikeBuildFile(content) {
			return nil
		}

		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}

		results = append(results, DiscoveredFile{Path: rel, AbsPath: abs})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b DiscoveredFile) int {
		return cmp.Compare(a.Path, b.Path)
	})

	return results, nil
}

// isExcluded checks path (relative, forward-slashed) against exclude
// patterns. Relative patterns (no leading "/" or "**/") are treated as
// matching at any depth.
func isExcluded(relPath string, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		pattern = filepath.ToSlash(pattern)
		if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
			pattern = "**/" + pattern
		}
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}
