// Package interfaces declares the external collaborator contracts each
// component depends on. Each is intentionally narrow (accept interfaces,
// return structs) so components depend only on the methods they actually call.
package interfaces

import "context"

// VectorRecord is one row upserted into the vector store: a stable id, an
// embedding, and typed metadata used for filtering and hydration. BlobID and
// ParentBlobID round-trip the chunk's KV address so the context assembler
// can dispatch straight to a KV lookup without a second index.
type VectorRecord struct {
	ID           string
	Embedding    []float32
	ClassID      string // course_id
	RootID       string
	RootPostNum  int
	Title        string
	Date         string
	Type         string
	BlobID       string
	ParentBlobID string
}

// VectorHit is one row returned from a vector search.
type VectorHit struct {
	ID           string
	Score        float64
	ClassID      string
	RootID       string
	RootPostNum  int
	Title        string
	Date         string
	Type         string
	BlobID       string
	ParentBlobID string
}

// VectorStore is the semantic search collaborator: a Pinecone-shaped
// upsert_records(namespace, records) / search(namespace, top_k, filter,
// inputs) contract.
type VectorStore interface {
	UpsertRecords(ctx context.Context, namespace string, records []VectorRecord) error
	Search(ctx context.Context, namespace string, topK int, classID string, queryEmbedding []float32) ([]VectorHit, error)
}

// Page is a KV query/scan continuation token. An empty Page means no more
// results; a non-empty one is passed into the next call to resume.
type Page struct {
	Token string
}

// SortKeyPredicate narrows a KV query by sort key, mirroring DynamoDB's
// begins_with / comparison key condition expressions.
type SortKeyPredicate struct {
	BeginsWith string
	GreaterThan string
}

// KVStore is the durable system-of-record collaborator: a DynamoDB-shaped
// contract over named logical tables (chunks, posts, diffs, standing
// queries, sent notifications, users, student queries, tabs, messages), so a
// single implementation can back all of them.
type KVStore interface {
	Get(ctx context.Context, table, partitionKey, sortKey string, out interface{}) (bool, error)
	BatchGet(ctx context.Context, table string, keys [][2]string) (map[string]map[string]interface{}, error)
	Put(ctx context.Context, table, partitionKey, sortKey string, item interface{}) error
	ConditionalUpdate(ctx context.Context, table, partitionKey, sortKey string, updates map[string]interface{}, condition func(existing map[string]interface{}) bool) error
	BatchPut(ctx context.Context, table string, items []KVItem) error
	BatchDelete(ctx context.Context, table string, keys [][2]string) error
	Query(ctx context.Context, table, partitionKey string, sortPredicate *SortKeyPredicate, page Page, limit int) ([]map[string]interface{}, Page, error)
	QueryIndex(ctx context.Context, table, index, partitionKey string, sortPredicate *SortKeyPredicate, page Page, limit int) ([]map[string]interface{}, Page, error)
	// Scan walks every row of table regardless of partition, paginated, for
	// the summarizer's "find every stale post" sweep (DynamoDB Scan analog).
	Scan(ctx context.Context, table string, page Page, limit int) ([]map[string]interface{}, Page, error)
}

// KVItem pairs a full compound key with the value BatchPut writes to it.
type KVItem struct {
	PartitionKey string
	SortKey      string
	Value        interface{}
}

// EmailSender sends a multipart (text + HTML) email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// QueueMessage is one inbound incremental-scrape update notification.
type QueueMessage struct {
	Handle   string
	CourseID string
	PostID   string
}

// UpdateQueue is the inbound incremental-scrape collaborator: long-poll
// receive (batch <= 10, wait <= 1s), delete-by-handle.
type UpdateQueue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, handle string) error
}

// ParameterStore resolves a named credential/parameter, optionally decrypted.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string, withDecryption bool) (string, error)
}
