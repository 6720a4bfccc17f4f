package card

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini generates cards with a Gemini image model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini connects to the Gemini API with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

// Generate asks the model for an image and returns the first image part.
func (g *Gemini) Generate(ctx context.Context, c Card) (*Image, error) {
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(c.Prompt()))
	if err != nil {
		return nil, fmt.Errorf("generate card for %s: %w", c.CA, err)
	}
	if img := firstImage(resp); img != nil {
		return img, nil
	}
	return nil, ErrNoImage
}

func firstImage(resp *genai.GenerateContentResponse) *Image {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
				return &Image{MIMEType: blob.MIMEType, Data: blob.Data}
			}
		}
	}
	return nil
}
