package image

import "context"

// GenerateRequest describes a normalized request passed to any image backend.
// One request produces one image.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Model          string
	Sampler        string
	Steps          int
	CFGScale       float64
	Width          int
	Height         int
	Seed           *int64
	JobID          string
}

// Asset represents a generated image plus the backend's diagnostics.
type Asset struct {
	Data   []byte
	Format string
	Width  int
	Height int
	Seed   int64
	Info   string
}

// Generator is the contract implemented by all image backends.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
