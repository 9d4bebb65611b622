package transfer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
)

// TransferTTL reclaims abandoned transfers; every chunk refreshes it.
const TransferTTL = 600 * time.Second

// Reassembler buffers base64 chunks in the cache tier until a transfer
// completes, then returns the decoded payload for the file-message entry
// point.
type Reassembler struct {
	store cache.Store
}

// Completed is a fully reassembled transfer.
type Completed struct {
	Meta Meta
	Data []byte
}

// Meta is the transfer state kept in the file:meta hash.
type Meta struct {
	TempID      string
	ChatID      int
	SenderID    int
	FileName    string
	MimeType    string
	Caption     string
	DeclaredLen int64
	TotalChunks int
	AckID       string
}

// Chunk is one send_file_message_chunk frame.
type Chunk struct {
	TempID      string `json:"temp_id"`
	ChatID      int    `json:"chat_id"`
	FileName    string `json:"file_name"`
	MimeType    string `json:"file_type"`
	Caption     string `json:"caption,omitempty"`
	FileSize    int64  `json:"file_size"`
	TotalChunks int    `json:"total_chunks"`
	ChunkIndex  int    `json:"chunk_index"`
	Data        string `json:"data"`
	IsLast      bool   `json:"is_last"`
	AckID       string `json:"ack_id,omitempty"`
}

// Progress reports the per-chunk state returned to the uploader.
type Progress struct {
	TempID     string `json:"temp_id"`
	ChunkIndex int    `json:"chunk_index"`
	Received   int    `json:"received"`
	Total      int    `json:"total"`
	Complete   bool   `json:"complete"`
}

func NewReassembler(store cache.Store) *Reassembler {
	return &Reassembler{store: store}
}

func metaKey(tempID string) string {
	return "file:meta:" + tempID
}

func chunksKey(tempID string) string {
	return "file:chunks:" + tempID
}

type bufferedChunk struct {
	Index int    `json:"index"`
	Data  string `json:"data"`
}

// Ingest buffers one chunk. On the chunk that completes the transfer it
// reassembles and decodes the payload, clears both keys and returns the
// completed transfer.
func (r *Reassembler) Ingest(ctx context.Context, senderID int, c Chunk) (Progress, *Completed, error) {
	if c.TempID == "" {
		return Progress{}, nil, fmt.Errorf("temp_id is required")
	}
	if c.TotalChunks <= 0 {
		return Progress{}, nil, fmt.Errorf("total_chunks must be positive")
	}
	if c.FileSize > storage.MaxFileSize {
		r.abort(ctx, c.TempID)
		return Progress{}, nil, fmt.Errorf("declared size %d exceeds the %d byte limit", c.FileSize, storage.MaxFileSize)
	}

	opened, err := r.openTransfer(ctx, senderID, c)
	if err != nil {
		return Progress{}, nil, err
	}
	if opened {
		observability.IncTransfersActive()
	}

	buf, err := json.Marshal(bufferedChunk{Index: c.ChunkIndex, Data: c.Data})
	if err != nil {
		return Progress{}, nil, fmt.Errorf("marshal chunk %d: %w", c.ChunkIndex, err)
	}
	if _, err := r.store.RPush(ctx, chunksKey(c.TempID), string(buf)); err != nil {
		return Progress{}, nil, fmt.Errorf("buffer chunk %d: %w", c.ChunkIndex, err)
	}
	received, err := r.store.HIncrBy(ctx, metaKey(c.TempID), "received", 1)
	if err != nil {
		return Progress{}, nil, fmt.Errorf("count chunk %d: %w", c.ChunkIndex, err)
	}

	// Every chunk pushes the reclaim deadline out again.
	_ = r.store.Expire(ctx, metaKey(c.TempID), TransferTTL)
	_ = r.store.Expire(ctx, chunksKey(c.TempID), TransferTTL)

	progress := Progress{
		TempID:     c.TempID,
		ChunkIndex: c.ChunkIndex,
		Received:   int(received),
		Total:      c.TotalChunks,
	}

	// Completion needs both signals: the last-chunk flag and a counter that
	// has reached the declared total, so out-of-order arrival cannot finish a
	// transfer early.
	if !c.IsLast || int(received) < c.TotalChunks {
		return progress, nil, nil
	}

	meta, err := r.loadMeta(ctx, c.TempID)
	if err != nil {
		r.abort(ctx, c.TempID)
		return Progress{}, nil, err
	}
	data, err := r.assemble(ctx, meta)
	r.abort(ctx, c.TempID)
	if err != nil {
		return Progress{}, nil, err
	}

	progress.Complete = true
	return progress, &Completed{Meta: meta, Data: data}, nil
}

// openTransfer creates the meta hash on the first chunk of a transfer and
// reports whether it did.
func (r *Reassembler) openTransfer(ctx context.Context, senderID int, c Chunk) (bool, error) {
	exists, err := r.store.Exists(ctx, metaKey(c.TempID))
	if err != nil {
		return false, fmt.Errorf("check transfer %s: %w", c.TempID, err)
	}
	if exists {
		return false, nil
	}

	fields := map[string]string{
		"chat_id":      strconv.Itoa(c.ChatID),
		"sender_id":    strconv.Itoa(senderID),
		"file_name":    c.FileName,
		"mime_type":    c.MimeType,
		"caption":      c.Caption,
		"declared_len": strconv.FormatInt(c.FileSize, 10),
		"total_chunks": strconv.Itoa(c.TotalChunks),
		"received":     "0",
		"ack_id":       c.AckID,
	}
	if err := r.store.HSet(ctx, metaKey(c.TempID), fields); err != nil {
		return false, fmt.Errorf("open transfer %s: %w", c.TempID, err)
	}
	if err := r.store.Expire(ctx, metaKey(c.TempID), TransferTTL); err != nil {
		return false, fmt.Errorf("expire transfer %s: %w", c.TempID, err)
	}
	return true, nil
}

func (r *Reassembler) loadMeta(ctx context.Context, tempID string) (Meta, error) {
	fields, err := r.store.HGetAll(ctx, metaKey(tempID))
	if err != nil {
		return Meta{}, fmt.Errorf("load transfer %s: %w", tempID, err)
	}
	if len(fields) == 0 {
		return Meta{}, fmt.Errorf("transfer %s expired", tempID)
	}

	chatID, _ := strconv.Atoi(fields["chat_id"])
	senderID, _ := strconv.Atoi(fields["sender_id"])
	declaredLen, _ := strconv.ParseInt(fields["declared_len"], 10, 64)
	total, _ := strconv.Atoi(fields["total_chunks"])
	return Meta{
		TempID:      tempID,
		ChatID:      chatID,
		SenderID:    senderID,
		FileName:    fields["file_name"],
		MimeType:    fields["mime_type"],
		Caption:     fields["caption"],
		DeclaredLen: declaredLen,
		TotalChunks: total,
		AckID:       fields["ack_id"],
	}, nil
}

// assemble orders the buffered chunks by index, concatenates and decodes.
func (r *Reassembler) assemble(ctx context.Context, meta Meta) ([]byte, error) {
	raw, err := r.store.LRange(ctx, chunksKey(meta.TempID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read chunks %s: %w", meta.TempID, err)
	}
	if len(raw) != meta.TotalChunks {
		return nil, fmt.Errorf("transfer %s lost chunks: have %d want %d", meta.TempID, len(raw), meta.TotalChunks)
	}

	chunks := make([]bufferedChunk, 0, len(raw))
	var encodedLen int
	for _, item := range raw {
		var c bufferedChunk
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("decode buffered chunk %s: %w", meta.TempID, err)
		}
		encodedLen += len(c.Data)
		// Base64 inflates by 4/3, so the encoded buffer bounds the payload.
		if encodedLen > storage.MaxFileSize*4/3+4 {
			return nil, fmt.Errorf("transfer %s exceeds the %d byte limit", meta.TempID, storage.MaxFileSize)
		}
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	var encoded []byte
	for _, c := range chunks {
		encoded = append(encoded, c.Data...)
	}
	data, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode transfer %s: %w", meta.TempID, err)
	}
	if int64(len(data)) > storage.MaxFileSize {
		return nil, fmt.Errorf("transfer %s exceeds the %d byte limit", meta.TempID, storage.MaxFileSize)
	}
	return data, nil
}

// abort clears both transfer keys.
func (r *Reassembler) abort(ctx context.Context, tempID string) {
	exists, err := r.store.Exists(ctx, metaKey(tempID))
	if err == nil && !exists {
		return
	}
	_ = r.store.Del(ctx, metaKey(tempID), chunksKey(tempID))
	observability.DecTransfersActive()
}
