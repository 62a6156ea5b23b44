// Package testutil provides a deterministic mock OCI registry for testing
// external-reference verification against a real HTTP registry protocol
// implementation, rather than a hand-rolled stub.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// MockRegistry is an in-memory OCI registry backed by go-containerregistry.
// It tracks HTTP requests for test assertions.
type MockRegistry struct {
	Server   *httptest.Server
	mu       sync.Mutex
	requests []string
}

// New creates and starts a mock registry server.
func New() *MockRegistry {
	mr := &MockRegistry{}
	handler := registry.New()
	mr.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr.mu.Lock()
		mr.requests = append(mr.requests, r.Method+" "+r.URL.Path)
		mr.mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	return mr
}

// Close shuts down the server.
func (mr *MockRegistry) Close() { mr.Server.Close() }

// Host returns "host:port" of the mock registry.
func (mr *MockRegistry) Host() string { return mr.Server.Listener.Addr().String() }

// Requests returns a copy of all requests recorded since the last reset.
func (mr *MockRegistry) Requests() []string {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	out := make([]string, len(mr.requests))
	copy(out, mr.requests)
	return out
}

// ResetRequests clears the recorded requests.
func (mr *MockRegistry) ResetRequests() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.requests = nil
}

// HasRequest checks whether any recorded request contains the pattern.
func (mr *MockRegistry) HasRequest(pattern string) bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	for _, r := range mr.requests {
		if strings.Contains(r, pattern) {
			return true
		}
	}
	return false
}

// PushImage pushes a trivial random single-layer image to repo:tag and
// returns its reference string (host/repo:tag), ready to feed to a
// verifier under test.
func (mr *MockRegistry) PushImage(repo, tag string) (string, error) {
	img, err := random.Image(256, 1)
	if err != nil {
		return "", fmt.Errorf("build image: %w", err)
	}

	refStr := mr.Host() + "/" + repo + ":" + tag
	ref, err := name.ParseReference(refStr, name.Insecure)
	if err != nil {
		return "", fmt.Errorf("parse ref: %w", err)
	}

	if err := remote.Write(ref, img); err != nil {
		return "", fmt.Errorf("push image: %w", err)
	}

	return refStr, nil
}
