// Package ingest implements C3 (chunk manager) and C5 (scraper): turning
// blobs into deduped, dual-written chunks, and driving that pipeline across
// a full course or a batch of incremental updates.
package ingest

import (
	"context"
	"fmt"

	"github.com/dfroberg/coursepilot/internal/common"
	kvstore "github.com/dfroberg/coursepilot/internal/store/kv"
	"github.com/dfroberg/coursepilot/internal/textproc"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const chunkTable = "chunks"

// ChunkManager derives chunks from blobs and dual-writes them to the KV and
// vector stores with content-addressed dedup.
type ChunkManager struct {
	kv       interfaces.KVStore
	vector   interfaces.VectorStore
	embedder interfaces.Embedder
	ns       string
	batchGet int
	batchVec int

	pending []interfaces.VectorRecord
}

// NewChunkManager builds a ChunkManager. namespace is the vector store's
// namespace (course-scoped or global, per the vector store's own driver).
func NewChunkManager(
	kv interfaces.KVStore, vector interfaces.VectorStore, embedder interfaces.Embedder,
	namespace string, batchGet, batchVec int,
) *ChunkManager {
	if batchGet <= 0 {
		batchGet = 100
	}
	if batchVec <= 0 {
		batchVec = 25
	}
	return &ChunkManager{kv: kv, vector: vector, embedder: embedder, ns: namespace, batchGet: batchGet, batchVec: batchVec}
}

// Process derives chunks for every blob and dedup-writes them: chunk, batch,
// check existing hashes, write what changed, and queue it for vector upsert.
func (m *ChunkManager) Process(ctx context.Context, courseID string, blobs []types.Blob) error {
	var all []types.Chunk
	for _, b := range blobs {
		texts := textproc.Chunk(textproc.ChunkInput{Content: b.Content, Title: b.Title}, textproc.TargetWords)
		for idx, text := range texts {
			all = append(all, types.Chunk{
				CourseID:     courseID,
				BlobID:       b.ID,
				ParentBlobID: b.ParentID,
				ChunkIndex:  idx,
				RootID:      b.RootID,
				RootPostNum: b.RootPostNum,
				Type:        b.Type,
				Title:       b.Title,
				Date:        b.Date,
				ContentHash: textproc.Hash(text),
				ChunkText:   text,
				AuthorID:    b.AuthorID,
				AuthorName:  b.AuthorName,
				Endorsement: b.Endorsement,
			})
		}
	}

	for start := 0; start < len(all); start += m.batchGet {
		end := start + m.batchGet
		if end > len(all) {
			end = len(all)
		}
		if err := m.processBatch(ctx, all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *ChunkManager) processBatch(ctx context.Context, batch []types.Chunk) error {
	keys := make([][2]string, 0, len(batch))
	for _, c := range batch {
		keys = append(keys, [2]string{c.ParentID(), c.ID()})
	}
	existing, err := m.kv.BatchGet(ctx, chunkTable, keys)
	if err != nil {
		return fmt.Errorf("ingest: batch get chunks: %w", err)
	}

	var toInsert []types.Chunk
	for _, c := range batch {
		row, ok := existing[kvstore.BatchGetKey(c.ParentID(), c.ID())]
		if ok && fmt.Sprint(row["ContentHash"]) == c.ContentHash {
			continue
		}
		toInsert = append(toInsert, c)
	}
	if len(toInsert) == 0 {
		return nil
	}

	items := make([]interfaces.KVItem, 0, len(toInsert))
	for _, c := range toInsert {
		items = append(items, interfaces.KVItem{PartitionKey: c.ParentID(), SortKey: c.ID(), Value: c})
	}
	if err := m.kv.BatchPut(ctx, chunkTable, items); err != nil {
		return fmt.Errorf("ingest: batch put chunks: %w", err)
	}

	for _, c := range toInsert {
		embedding, err := m.embedder.Embed(ctx, c.ChunkText)
		if err != nil {
			common.PipelineError(ctx, "chunk_manager", "embed", map[string]interface{}{"chunk_id": c.ID(), "error": err.Error()})
			continue
		}
		if err := m.enqueueVector(ctx, c, embedding); err != nil {
			return err
		}
	}
	return nil
}

func (m *ChunkManager) enqueueVector(ctx context.Context, c types.Chunk, embedding []float32) error {
	m.pending = append(m.pending, interfaces.VectorRecord{
		ID:           c.ID(),
		Embedding:    embedding,
		ClassID:      c.CourseID,
		RootID:       c.RootID,
		RootPostNum:  c.RootPostNum,
		Title:        c.Title,
		Date:         c.Date.Format("2006-01-02T15:04:05Z07:00"),
		Type:         string(c.Type),
		BlobID:       c.BlobID,
		ParentBlobID: c.ParentBlobID,
	})
	if len(m.pending) >= m.batchVec {
		return m.flush(ctx)
	}
	return nil
}

func (m *ChunkManager) flush(ctx context.Context) error {
	if len(m.pending) == 0 {
		return nil
	}
	if err := m.vector.UpsertRecords(ctx, m.ns, m.pending); err != nil {
		return fmt.Errorf("ingest: flush vector batch: %w", err)
	}
	m.pending = m.pending[:0]
	return nil
}

// Finalize flushes any residual vector batch. Callers must call this once
// after draining all posts in a run.
func (m *ChunkManager) Finalize(ctx context.Context) error {
	return m.flush(ctx)
}
