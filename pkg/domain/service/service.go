package service

import (
	"context"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// JSONFetcher fetches and decodes JSON documents
type JSONFetcher interface {
	// FetchJSON decodes the response into v and reports success.
	// Failures are retried and logged by the implementation; false is the only signal.
	FetchJSON(ctx context.Context, url string, v any) bool
}

// TextFetcher fetches plain documents
type TextFetcher interface {
	// FetchText returns the body of a 2xx response
	FetchText(ctx context.Context, url string) (string, error)
}

// SecretProvider owns the signing secrets
type SecretProvider interface {
	// EnsureParams returns complete secrets, deriving them when needed
	EnsureParams(ctx context.Context) (entity.SecretParams, error)
	// Current returns the secrets as they are now, possibly incomplete
	Current() entity.SecretParams
	// Invalidate drops the secrets so the next EnsureParams re-derives them
	Invalidate()
}
