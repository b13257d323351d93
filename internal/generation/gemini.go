// Package generation calls the Gemini image model.
package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/Bukachka23/image-backend/internal/services"
)

const (
	DefaultModel = "gemini-2.5-flash-image-preview"

	maxConcurrentVariants = 3
	aspectHint            = " Square 1:1 aspect ratio."
)

// Per-variant lighting hints so the images differ.
var variantSuffixes = []string{
	" High-resolution, photorealistic quality with natural daylight.",
	" Professional studio lighting with soft shadows and realistic details.",
	" Natural outdoor lighting with authentic textures and lifelike appearance.",
}

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements services.Generator. Variants are requested in parallel;
// a variant that fails or returns no image is skipped.
type Gemini struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

var _ services.Generator = (*Gemini)(nil)

// NewGemini builds a client for the Gemini Developer API.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newGemini(client.Models, model, logger), nil
}

func newGemini(models contentGenerator, model string, logger *slog.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{models: models, model: model, logger: logger}
}

// Generate returns one data URI per successful variant, in variant order.
// It fails only when every variant failed with an error; a mix of empty
// answers and errors with no image yields an empty slice and the last error.
func (g *Gemini) Generate(ctx context.Context, prompt string, ref services.ReferenceImage, variants int) ([]string, error) {
	if variants <= 0 {
		variants = 1
	}
	results := make([]string, variants)

	var (
		mu      sync.Mutex
		lastErr error
	)
	var eg errgroup.Group
	eg.SetLimit(maxConcurrentVariants)
	for i := 0; i < variants; i++ {
		variantPrompt := prompt + variantSuffixes[i%len(variantSuffixes)] + aspectHint
		eg.Go(func() error {
			img, err := g.generateOne(ctx, variantPrompt, ref)
			if err != nil {
				g.logger.Warn("variant failed", "variant", i+1, "error", err)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = eg.Wait()

	images := make([]string, 0, variants)
	for _, img := range results {
		if img != "" {
			images = append(images, img)
		}
	}
	if len(images) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return images, nil
}

func (g *Gemini) generateOne(ctx context.Context, prompt string, ref services.ReferenceImage) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(ref.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, mimeOrDefault(ref.MIMEType)))
	}
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	)
	if err != nil {
		return "", err
	}
	return firstImage(resp), nil
}

// firstImage returns the first inline image of the response as a data URI.
func firstImage(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return DataURI(part.InlineData.MIMEType, part.InlineData.Data)
		}
	}
	return ""
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeOrDefault(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func mimeOrDefault(mimeType string) string {
	if mimeType == "" {
		return "image/png"
	}
	return mimeType
}
