package generator

import (
	"context"
	"errors"
)

// Fixed answers returned in place of errors
const (
	SentinelKeyMissing = "⚠️ API key not set"
	SentinelError      = "⚠️ AI error"
)

var (
	// ErrMissingKey is returned when no API credential is configured.
	ErrMissingKey = errors.New("generation API key not set")

	// ErrEmptyResponse is returned when the service answers without any choice.
	ErrEmptyResponse = errors.New("no completion returned from API")
)

// Generator interface for completing a single-message prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelInfo() string
}
