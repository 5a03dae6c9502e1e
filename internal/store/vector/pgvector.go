package vector

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// pgvectorRow is the physical row shape for the embedding column, one
// physical table per namespace; courses within a namespace share that table
// and are separated by class_id.
type pgvectorRow struct {
	ID           string          `gorm:"column:id;primaryKey"`
	ClassID      string          `gorm:"column:class_id;index"`
	RootID       string          `gorm:"column:root_id"`
	RootPostNum  int             `gorm:"column:root_post_num"`
	Title        string          `gorm:"column:title"`
	Date         string          `gorm:"column:date"`
	Type         string          `gorm:"column:type"`
	BlobID       string          `gorm:"column:blob_id"`
	ParentBlobID string          `gorm:"column:parent_blob_id"`
	Embedding    pgvector.Vector `gorm:"column:embedding;type:vector"`
}

// PgvectorStore is a VectorStore backed by the pgvector extension on the
// same Postgres instance used by the KV store, for deployments that would
// rather not run a second service.
type PgvectorStore struct {
	db *gorm.DB
}

// NewPgvectorStore wraps an open gorm connection. Callers are responsible
// for `CREATE EXTENSION IF NOT EXISTS vector` ahead of first use.
func NewPgvectorStore(db *gorm.DB) *PgvectorStore {
	return &PgvectorStore{db: db}
}

func (p *PgvectorStore) tableFor(namespace string) string {
	return "vector_" + namespace
}

func (p *PgvectorStore) ensureTable(ctx context.Context, namespace string) error {
	table := p.tableFor(namespace)
	if p.db.Migrator().HasTable(table) {
		return nil
	}
	return p.db.WithContext(ctx).Table(table).AutoMigrate(&pgvectorRow{})
}

// UpsertRecords writes records into namespace's table.
func (p *PgvectorStore) UpsertRecords(ctx context.Context, namespace string, records []interfaces.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := p.ensureTable(ctx, namespace); err != nil {
		return fmt.Errorf("vector: ensure table for %q: %w", namespace, err)
	}

	rows := make([]pgvectorRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, pgvectorRow{
			ID:           r.ID,
			ClassID:      r.ClassID,
			RootID:       r.RootID,
			RootPostNum:  r.RootPostNum,
			Title:        r.Title,
			Date:         r.Date,
			Type:         r.Type,
			BlobID:       r.BlobID,
			ParentBlobID: r.ParentBlobID,
			Embedding:    pgvector.NewVector(r.Embedding),
		})
	}

	table := p.tableFor(namespace)
	return p.db.WithContext(ctx).Table(table).Save(&rows).Error
}

// Search returns the topK nearest neighbors by cosine distance within
// namespace, filtered to classID.
func (p *PgvectorStore) Search(
	ctx context.Context, namespace string, topK int, classID string, queryEmbedding []float32,
) ([]interfaces.VectorHit, error) {
	table := p.tableFor(namespace)
	if !p.db.Migrator().HasTable(table) {
		return nil, nil
	}

	var rows []struct {
		pgvectorRow
		Distance float64 `gorm:"column:distance"`
	}
	query := pgvector.NewVector(queryEmbedding)
	err := p.db.WithContext(ctx).Table(table).
		Select("*, embedding <=> ? AS distance", query).
		Where("class_id = ?", classID).
		Order("distance ASC").
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector: search namespace %q: %w", namespace, err)
	}

	hits := make([]interfaces.VectorHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, interfaces.VectorHit{
			ID:           row.ID,
			Score:        1 - row.Distance, // cosine distance -> similarity
			ClassID:      row.ClassID,
			RootID:       row.RootID,
			RootPostNum:  row.RootPostNum,
			Title:        row.Title,
			Date:         row.Date,
			Type:         row.Type,
			BlobID:       row.BlobID,
			ParentBlobID: row.ParentBlobID,
		})
	}
	return hits, nil
}
