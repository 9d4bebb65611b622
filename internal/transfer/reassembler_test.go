package transfer

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
)

// splitEncoded cuts a base64 payload into n chunk frames for one transfer.
func splitEncoded(t *testing.T, tempID string, payload []byte, n int) []Chunk {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString(payload)
	size := (len(encoded) + n - 1) / n

	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, Chunk{
			TempID:      tempID,
			ChatID:      5,
			FileName:    "photo.png",
			MimeType:    "image/png",
			FileSize:    int64(len(payload)),
			TotalChunks: n,
			ChunkIndex:  i,
			Data:        encoded[start:end],
			IsLast:      i == n-1,
		})
	}
	return chunks
}

func TestIngestSingleChunk(t *testing.T) {
	ctx := context.Background()
	r := NewReassembler(cache.NewMemoryStore())
	payload := []byte("tiny file body")

	chunks := splitEncoded(t, "t-1", payload, 1)
	progress, done, err := r.Ingest(ctx, 9, chunks[0])
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, progress.Complete)
	assert.Equal(t, payload, done.Data)
	assert.Equal(t, 9, done.Meta.SenderID)
	assert.Equal(t, 5, done.Meta.ChatID)
	assert.Equal(t, "photo.png", done.Meta.FileName)
}

func TestIngestOutOfOrderChunks(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	r := NewReassembler(store)
	payload := []byte("a somewhat longer payload that spans several chunks of base64 text")

	chunks := splitEncoded(t, "t-2", payload, 3)

	// Middle chunk first, then the head; neither completes the transfer.
	progress, done, err := r.Ingest(ctx, 9, chunks[1])
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, 1, progress.Received)

	progress, done, err = r.Ingest(ctx, 9, chunks[0])
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, 2, progress.Received)

	progress, done, err = r.Ingest(ctx, 9, chunks[2])
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, progress.Complete)
	assert.Equal(t, payload, done.Data, "chunks must reassemble in index order")

	exists, err := store.Exists(ctx, metaKey("t-2"))
	require.NoError(t, err)
	assert.False(t, exists, "completion must clear the transfer keys")
	exists, err = store.Exists(ctx, chunksKey("t-2"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIngestEarlyLastChunkWaitsForTheRest(t *testing.T) {
	ctx := context.Background()
	r := NewReassembler(cache.NewMemoryStore())
	payload := []byte("payload delivered with the final frame arriving first")

	chunks := splitEncoded(t, "t-3", payload, 2)

	progress, done, err := r.Ingest(ctx, 9, chunks[1])
	require.NoError(t, err)
	assert.Nil(t, done, "the final frame alone must not complete the transfer")
	assert.False(t, progress.Complete)
}

func TestIngestRejectsOversizedDeclaration(t *testing.T) {
	ctx := context.Background()
	r := NewReassembler(cache.NewMemoryStore())

	_, _, err := r.Ingest(ctx, 9, Chunk{
		TempID:      "t-4",
		ChatID:      5,
		FileSize:    storage.MaxFileSize + 1,
		TotalChunks: 1,
		Data:        "aGk=",
		IsLast:      true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestIngestRejectsMissingFields(t *testing.T) {
	ctx := context.Background()
	r := NewReassembler(cache.NewMemoryStore())

	_, _, err := r.Ingest(ctx, 9, Chunk{TotalChunks: 1})
	require.Error(t, err)

	_, _, err = r.Ingest(ctx, 9, Chunk{TempID: "t-5"})
	require.Error(t, err)
}

func TestIngestDetectsLostChunks(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	r := NewReassembler(store)
	payload := []byte("two chunk payload whose buffer goes missing")

	chunks := splitEncoded(t, "t-6", payload, 2)

	_, done, err := r.Ingest(ctx, 9, chunks[0])
	require.NoError(t, err)
	require.Nil(t, done)

	// Simulate the buffer expiring while the meta hash survived.
	require.NoError(t, store.Del(ctx, chunksKey("t-6")))

	_, done, err = r.Ingest(ctx, 9, chunks[1])
	require.Error(t, err)
	assert.Nil(t, done)
	assert.Contains(t, err.Error(), "lost chunks")
}
