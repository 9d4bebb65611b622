package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

func TestSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	url, err := s.Save("photo.PNG", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"), "extension is lowercased")

	stored := filepath.Join(dir, filepath.Base(url))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, s.Delete(url))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Delete(url), "deleting a missing file is not an error")
}

func TestSaveNamesDoNotCollide(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	a, err := s.Save("doc.pdf", []byte("a"))
	require.NoError(t, err)
	b, err := s.Save("doc.pdf", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMessageTypeFor(t *testing.T) {
	cases := map[string]string{
		"image/png":                "image",
		"video/mp4":                "video",
		"audio/ogg":                "audio",
		"application/pdf":          "document",
		"text/plain":               "document",
		"application/octet-stream": "file",
		"":                         "file",
	}
	for mime, want := range cases {
		assert.Equal(t, want, MessageTypeFor(mime), mime)
	}
	assert.Equal(t, models.MessageTypeDocument, MessageTypeFor("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
}
