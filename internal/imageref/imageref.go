// Package imageref parses the image references that appear on the
// right-hand side of FROM, COPY --from, and RUN --mount=...,from= clauses.
//
// A reference is split into a bare Name and an optional Tag. Matching
// between a reference and a declared stage alias is Name-only: the tag
// is carried for diagnostics (a mismatched tag on what is otherwise the
// same local stage name produces a warning, never a different node).
package imageref

import (
	"strings"

	"github.com/distribution/reference"
)

// Ref is a parsed image reference.
type Ref struct {
	// Raw is the original, unmodified reference string.
	Raw string
	// Name is the reference's name component, lowercased for comparison.
	// For a stage reference this is simply the alias as written.
	Name string
	// Tag is the reference's tag, if any ("" if untagged or digest-pinned).
	Tag string
	// Digest is the reference's digest, if any (e.g. "sha256:...").
	Digest string
}

// Parse splits raw into its Name/Tag/Digest components.
//
// Stage aliases (the common case for FROM/--from targets inside this
// repository's own corpus) are not valid docker/distribution image names
// in general — they are bare identifiers and are never tagged — so Parse
// falls back to a permissive manual split when reference.Parse rejects
// the input. This keeps classification working for inputs like
// "builder" or "build-stage-1" that distribution/reference has no
// obligation to accept.
func Parse(raw string) Ref {
	raw = strings.TrimSpace(raw)

	if parsed, err := reference.Parse(raw); err == nil {
		r := Ref{Raw: raw, Name: strings.ToLower(named(parsed))}
		if tagged, ok := parsed.(reference.Tagged); ok {
			r.Tag = tagged.Tag()
		}
		if digested, ok := parsed.(reference.Digested); ok {
			r.Digest = digested.Digest().String()
		}
		return r
	}

	return parseLoose(raw)
}

// named extracts the name component from anything that implements
// reference.Named; returns "" otherwise (digest-only references have no
// Named component).
func named(ref reference.Reference) string {
	if n, ok := ref.(reference.Named); ok {
		return n.Name()
	}
	return ""
}

// parseLoose splits "name[:tag][@digest]" without validating name syntax,
// for inputs distribution/reference rejects (bare stage aliases, numeric
// COPY --from indexes, etc).
func parseLoose(raw string) Ref {
	r := Ref{Raw: raw, Name: raw}

	if at := strings.LastIndex(raw, "@"); at >= 0 {
		r.Name = raw[:at]
		r.Digest = raw[at+1:]
		raw = r.Name
	}

	// A colon after the last slash is a tag; a colon before it (or none)
	// is part of a registry host:port, which loose parsing leaves alone
	// since stage aliases never contain slashes.
	if colon := strings.LastIndex(raw, ":"); colon >= 0 {
		if slash := strings.LastIndex(raw, "/"); slash < colon {
			r.Name = raw[:colon]
			r.Tag = raw[colon+1:]
		}
	}

	r.Name = strings.ToLower(r.Name)
	return r
}

// IsNumericIndex reports whether raw is a bare non-negative integer, as
// used by "COPY --from=0" to reference a stage by position instead of name.
func IsNumericIndex(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n := 0
	for _, c := range raw {
		n = n*10 + int(c-'0')
	}
	return n, true
}
