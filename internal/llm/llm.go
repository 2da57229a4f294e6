// Package llm is the boundary to the generative model.
//
// Callers depend on the small Generator and FileStore interfaces, never on
// the SDK directly, so the error locator and the timestamp finder can be
// tested with in-memory fakes.
package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("llm: empty model response")

// Request is one generation call.
type Request struct {
	// Model is the model name, e.g. "gemini-2.0-flash".
	Model string
	// Prompt is the instruction text.
	Prompt string
	// File is an optional previously uploaded file attached before the prompt.
	File *File
	// JSON asks the model for an application/json response.
	JSON bool
	// Schema constrains the JSON response. Ignored unless JSON is set.
	Schema *genai.Schema
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// FileState is the processing state of an uploaded file.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// File is a handle to a file held by the model provider.
type File struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
}

// Ready reports whether the file can be used in a generation request.
func (f *File) Ready() bool {
	return f.State == FileStateActive
}

// FileStore uploads media for multimodal requests.
type FileStore interface {
	Upload(ctx context.Context, path, mimeType string) (*File, error)
	Get(ctx context.Context, name string) (*File, error)
	Delete(ctx context.Context, name string) error
}

// Client is the full model surface used by the service.
type Client interface {
	Generator
	FileStore
}
