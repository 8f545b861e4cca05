// Package llm turns an uploaded image into caption suggestions: provider
// clients fetch a raw response and Normalize reconciles it into a Result.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"postflow/internal/model"
)

var (
	ErrUnknownProvider = errors.New("llm: unknown provider")
	ErrEmptyResponse   = errors.New("llm: provider returned no content")
)

// Request describes the image and the audience the caption is written for.
type Request struct {
	Image       []byte
	ContentType string
	Platform    model.Platform
	Tone        string
	Audience    string
	Guidelines  string
	Description string
	MaxTags     int
}

// Generator asks a provider for a caption. The returned value is the raw
// provider payload, to be passed through Normalize.
type Generator interface {
	Name() model.Provider
	Generate(ctx context.Context, req Request) (any, error)
}

// BuildPrompt renders the instruction sent alongside the image.
func BuildPrompt(req Request) string {
	tone := req.Tone
	if tone == "" {
		tone = "professional"
	}
	audience := req.Audience
	if audience == "" {
		audience = "general audience"
	}
	maxTags := req.MaxTags
	if maxTags <= 0 {
		maxTags = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a social media post for %s about the attached image.\n", platformName(req.Platform))
	fmt.Fprintf(&b, "Tone: %s. Audience: %s.\n", tone, audience)
	if req.Description != "" {
		fmt.Fprintf(&b, "Context from the author: %s\n", req.Description)
	}
	if req.Guidelines != "" {
		fmt.Fprintf(&b, "Follow these guidelines: %s\n", req.Guidelines)
	}
	fmt.Fprintf(&b, "Keep the caption under %d characters and suggest at most %d hashtags.\n", model.MaxCaptionLength, maxTags)
	b.WriteString(`Respond with JSON only: {"caption": string, "tags": [string], "description": string}`)
	return b.String()
}

func platformName(p model.Platform) string {
	if p == "" {
		return "social media"
	}
	return string(p)
}

// NewHTTPClient returns a traced client for provider calls. Per-call deadlines
// come from the context, so the client itself has only a generous ceiling.
func NewHTTPClient(ceiling time.Duration) *http.Client {
	return &http.Client{
		Timeout:   ceiling,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Registry resolves a provider by name, falling back to a default.
type Registry struct {
	fallback   model.Provider
	generators map[model.Provider]Generator
}

// NewRegistry indexes gens by name. fallback names the provider used when a request names none.
func NewRegistry(fallback model.Provider, gens ...Generator) *Registry {
	r := &Registry{fallback: fallback, generators: make(map[model.Provider]Generator, len(gens))}
	for _, g := range gens {
		if g != nil {
			r.generators[g.Name()] = g
		}
	}
	return r
}

// Get returns the named generator, or the fallback when name is empty.
func (r *Registry) Get(name string) (Generator, error) {
	p := model.Provider(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		p = r.fallback
	}
	g, ok := r.generators[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return g, nil
}

// Providers lists the configured provider names.
func (r *Registry) Providers() []model.Provider {
	out := make([]model.Provider, 0, len(r.generators))
	for p := range r.generators {
		out = append(out, p)
	}
	return out
}
