package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	img "image"
	"image/color"
	"image/draw"
	"image/png"
)

// SyntheticGenerator renders deterministic placeholder images locally. It
// stands in for the real backend when no BACKEND_URL is configured, keeping
// the whole pipeline operational in development and CI.
type SyntheticGenerator struct{}

// NewSyntheticGenerator returns a generator that never fails.
func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{}
}

// Generate produces a striped PNG derived from the job id and prompt.
func (g *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := deterministicSeed(req.JobID, req.Prompt, req.Model)
	width, height := req.Width, req.Height
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}

	data, err := renderPlaceholder(width, height, seed)
	if err != nil {
		return nil, err
	}
	return &Asset{
		Data:   data,
		Format: "image/png",
		Width:  width,
		Height: height,
		Seed:   int64(seed),
		Info:   fmt.Sprintf(`{"seed":%d,"synthetic":true}`, seed),
	}, nil
}

func deterministicSeed(parts ...string) uint32 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return binary.BigEndian.Uint32(h.Sum(nil)[:4])
}

func renderPlaceholder(width, height int, seed uint32) ([]byte, error) {
	canvas := img.NewRGBA(img.Rect(0, 0, width, height))
	base := colorFromSeed(seed)
	accent := colorFromSeed(seed * 2654435761)
	draw.Draw(canvas, canvas.Bounds(), &img.Uniform{base}, img.Point{}, draw.Src)

	stripe := height / 8
	if stripe < 16 {
		stripe = 16
	}
	for y := 0; y < height; y += stripe * 2 {
		end := y + stripe
		if end > height {
			end = height
		}
		draw.Draw(canvas, img.Rect(0, y, width, end), &img.Uniform{accent}, img.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed uint32) color.RGBA {
	return color.RGBA{
		R: uint8(seed >> 16),
		G: uint8(seed >> 8),
		B: uint8(seed),
		A: 255,
	}
}

var _ Generator = (*SyntheticGenerator)(nil)
