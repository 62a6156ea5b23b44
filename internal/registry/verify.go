// Package registry provides the optional, opt-in verification of external
// base-image and COPY-source references against their real registry. It is
// never required for a correct generate run: a graph resolves and a bake
// file emits with zero network access. When a caller asks for it (the
// --verify-external flag, config.Registry.Verify), each external reference
// is HEAD-checked via github.com/google/go-containerregistry and the
// outcome is folded into the diagnostics report, never into a fatal error.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

// AuthError indicates authentication/authorization failure against the
// registry (401/403, missing or expired credentials).
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError indicates a transient network failure reaching the
// registry (DNS, connection refused, timeout).
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError indicates the reference does not resolve: unknown repo,
// tag, or digest.
type NotFoundError struct {
	Ref string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s: %v", e.Ref, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// Result is the outcome of verifying one external reference.
type Result struct {
	// Ref is the raw reference string as it appeared in the build file.
	Ref string
	// Exists is true when the registry confirmed the reference resolves.
	Exists bool
	// Err holds the classified failure whenever Exists is false:
	// NotFoundError for a confirmed absence or an unparseable reference,
	// AuthError or NetworkError for an inconclusive failure.
	Err error
}

// Verifier HEAD-checks external references against their registries,
// bounding concurrency so a large dependency set does not open one
// connection per reference.
type Verifier struct {
	// Concurrency caps the number of in-flight HEAD requests. Defaults
	// to 4 when zero or negative.
	Concurrency int
}

// VerifyAll checks every ref concurrently and returns one Result per
// input ref, in the same order. It never returns an error itself:
// per-ref failures are reported in each Result.
func (v *Verifier) VerifyAll(ctx context.Context, refs []string) []Result {
	concurrency := v.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Result, len(refs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ref string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = verifyOne(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	return results
}

func verifyOne(ctx context.Context, ref string) Result {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return Result{Ref: ref, Err: &NotFoundError{Ref: ref, Err: err}}
	}

	_, err = remote.Head(parsed, remote.WithContext(ctx))
	if err != nil {
		return Result{Ref: ref, Err: classifyError(ref, err)}
	}

	return Result{Ref: ref, Exists: true}
}

// classifyError maps a remote-transport failure onto the closed error
// taxonomy a diagnostics report can key its messaging on.
func classifyError(ref string, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Err: err}
		case http.StatusNotFound:
			return &NotFoundError{Ref: ref, Err: err}
		}
	}
	return &NetworkError{Err: err}
}
