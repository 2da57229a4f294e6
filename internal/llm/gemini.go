package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

var _ Client = (*Gemini)(nil)

// Gemini implements Client on top of the Gemini API.
type Gemini struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGemini creates a Gemini client. timeout bounds each Generate call;
// uploads are bounded by the caller's context only.
func NewGemini(ctx context.Context, apiKey string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini API key is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: creating gemini client: %w", err)
	}

	return &Gemini{client: client, timeout: timeout}, nil
}

// Generate sends one user turn and returns the response text.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, buildContents(req), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("llm: generating content with %s: %w", req.Model, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Upload sends a local file to the Files API.
func (g *Gemini) Upload(ctx context.Context, path, mimeType string) (*File, error) {
	f, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("llm: uploading %s: %w", mimeType, err)
	}
	return toFile(f), nil
}

// Get fetches the current state of an uploaded file.
func (g *Gemini) Get(ctx context.Context, name string) (*File, error) {
	f, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("llm: getting file %s: %w", name, err)
	}
	return toFile(f), nil
}

// Delete removes an uploaded file.
func (g *Gemini) Delete(ctx context.Context, name string) error {
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("llm: deleting file %s: %w", name, err)
	}
	return nil
}

func buildContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if req.File != nil {
		parts = append(parts, genai.NewPartFromURI(req.File.URI, req.File.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		// Line numbers and timestamps are lookups, not creative writing.
		Temperature: genai.Ptr[float32](0),
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}

func toFile(f *genai.File) *File {
	if f == nil {
		return &File{State: FileStateUnspecified}
	}
	state := FileState(f.State)
	if state == "" {
		state = FileStateUnspecified
	}
	return &File{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    state,
	}
}
