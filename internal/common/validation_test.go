package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"html", "json", "text", "markdown"}

	tests := []struct {
		name             string
		format           string
		supportedFormats []string
		expectedError    string
	}{
		{name: "html", format: "html", supportedFormats: supported},
		{name: "json", format: "json", supportedFormats: supported},
		{name: "markdown", format: "markdown", supportedFormats: supported},
		{
			name:             "xml not supported",
			format:           "xml",
			supportedFormats: supported,
			expectedError:    "unsupported output format 'xml'. Supported formats: [html json text markdown]",
		},
		{
			name:             "case sensitive",
			format:           "JSON",
			supportedFormats: supported,
			expectedError:    "unsupported output format 'JSON'. Supported formats: [html json text markdown]",
		},
		{
			name:             "empty format",
			format:           "",
			supportedFormats: supported,
			expectedError:    "unsupported output format ''. Supported formats: [html json text markdown]",
		},
		{name: "no restrictions", format: "xml", supportedFormats: nil},
		{
			name:             "single format",
			format:           "text",
			supportedFormats: []string{"json"},
			expectedError:    "unsupported output format 'text'. Supported formats: [json]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supportedFormats)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expectedError)
		})
	}
}

func TestResolveOutputFormat(t *testing.T) {
	supported := []string{"html", "json", "text"}

	format, err := ResolveOutputFormat("", "text", supported)
	require.NoError(t, err)
	assert.Equal(t, "text", format)

	format, err = ResolveOutputFormat("json", "text", supported)
	require.NoError(t, err)
	assert.Equal(t, "json", format)

	_, err = ResolveOutputFormat("markdown", "text", supported)
	assert.Error(t, err)
}

func BenchmarkValidateOutputFormat(b *testing.B) {
	supportedFormats := []string{"html", "json", "text", "markdown"}

	b.Run("valid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("json", supportedFormats)
		}
	})

	b.Run("invalid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("xml", supportedFormats)
		}
	})
}
