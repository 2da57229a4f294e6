package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "  ", time.Second)
	assert.Error(t, err)
}

func TestBuildContents(t *testing.T) {
	t.Run("prompt only", func(t *testing.T) {
		contents := buildContents(Request{Prompt: "hello"})
		require.Len(t, contents, 1)
		require.Len(t, contents[0].Parts, 1)
		assert.Equal(t, "hello", contents[0].Parts[0].Text)
		assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	})

	t.Run("file goes before the prompt", func(t *testing.T) {
		contents := buildContents(Request{
			Prompt: "find it",
			File:   &File{URI: "https://files/abc", MIMEType: "audio/mp4"},
		})
		require.Len(t, contents[0].Parts, 2)
		require.NotNil(t, contents[0].Parts[0].FileData)
		assert.Equal(t, "https://files/abc", contents[0].Parts[0].FileData.FileURI)
		assert.Equal(t, "find it", contents[0].Parts[1].Text)
	})
}

func TestBuildConfig(t *testing.T) {
	schema := &genai.Schema{Type: genai.TypeObject}

	plain := buildConfig(Request{Schema: schema})
	assert.Empty(t, plain.ResponseMIMEType)
	assert.Nil(t, plain.ResponseSchema, "schema is ignored without JSON")

	js := buildConfig(Request{JSON: true, Schema: schema})
	assert.Equal(t, "application/json", js.ResponseMIMEType)
	assert.Same(t, schema, js.ResponseSchema)
	require.NotNil(t, js.Temperature)
	assert.Equal(t, float32(0), *js.Temperature)
}

func TestToFile(t *testing.T) {
	f := toFile(&genai.File{
		Name:     "files/abc",
		URI:      "https://files/abc",
		MIMEType: "audio/mp4",
		State:    genai.FileStateActive,
	})
	assert.Equal(t, "files/abc", f.Name)
	assert.True(t, f.Ready())

	assert.Equal(t, FileStateUnspecified, toFile(nil).State)
	assert.Equal(t, FileStateUnspecified, toFile(&genai.File{}).State)
	assert.False(t, toFile(&genai.File{State: genai.FileStateProcessing}).Ready())
}
