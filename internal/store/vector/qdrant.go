// Package vector implements the VectorStore collaborator with two
// selectable drivers: Qdrant (native HNSW service) and pgvector (an
// extension on the same Postgres instance backing the KV store). The driver
// is chosen at startup via config.VectorDatabase.Driver.
package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// qdrantNamespace is the fixed UUID namespace for the deterministic point-id
// derivation below: a given chunk id always maps to the same point id.
var qdrantNamespace = uuid.NameSpaceOID

// pointUUID derives a stable UUID from a chunk's natural string id. Qdrant
// requires point ids to be either an unsigned integer or a UUID; chunk ids
// ("<blob_id>#<index>") are neither, so upsert/search round-trip the real id
// through the payload's "chunk_id" field instead.
func pointUUID(id string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(id)).String()
}

// QdrantStore is a VectorStore backed by a native Qdrant collection per
// namespace.
type QdrantStore struct {
	client     *qdrant.Client
	dimensions int
}

// NewQdrantStore dials a Qdrant instance at host:port.
func NewQdrantStore(host string, port int, dimensions int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("vector: dial qdrant: %w", err)
	}
	return &QdrantStore{client: client, dimensions: dimensions}, nil
}

// ensureCollection creates namespace's collection on first use, after
// checking CollectionExists; any error from either call is returned.
func (q *QdrantStore) ensureCollection(ctx context.Context, namespace string) error {
	exists, err := q.client.CollectionExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// UpsertRecords writes records into namespace's collection, creating it on
// first use.
func (q *QdrantStore) UpsertRecords(ctx context.Context, namespace string, records []interfaces.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, namespace); err != nil {
		return fmt.Errorf("vector: ensure collection %q: %w", namespace, err)
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(r.ID)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id":       r.ID,
				"class_id":       r.ClassID,
				"root_id":        r.RootID,
				"root_post_num":  r.RootPostNum,
				"title":          r.Title,
				"date":           r.Date,
				"type":           r.Type,
				"blob_id":        r.BlobID,
				"parent_blob_id": r.ParentBlobID,
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: namespace,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vector: upsert %d records into %q: %w", len(records), namespace, err)
	}
	return nil
}

// Search returns the topK nearest neighbors of queryEmbedding within
// namespace, filtered to classID (the course partition).
func (q *QdrantStore) Search(
	ctx context.Context, namespace string, topK int, classID string, queryEmbedding []float32,
) ([]interfaces.VectorHit, error) {
	limit := uint64(topK)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: namespace,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("class_id", classID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vector: search namespace %q: %w", namespace, err)
	}

	hits := make([]interfaces.VectorHit, 0, len(resp))
	for _, point := range resp {
		payload := point.GetPayload()
		hits = append(hits, interfaces.VectorHit{
			ID:           payloadString(payload, "chunk_id"),
			Score:        float64(point.GetScore()),
			ClassID:      payloadString(payload, "class_id"),
			RootID:       payloadString(payload, "root_id"),
			RootPostNum:  int(payloadInt(payload, "root_post_num")),
			Title:        payloadString(payload, "title"),
			Date:         payloadString(payload, "date"),
			Type:         payloadString(payload, "type"),
			BlobID:       payloadString(payload, "blob_id"),
			ParentBlobID: payloadString(payload, "parent_blob_id"),
		})
	}
	return hits, nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}
