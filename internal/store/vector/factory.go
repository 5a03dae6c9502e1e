package vector

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// New builds the configured VectorStore driver. db is only used by the
// pgvector driver; it may be nil when cfg.Driver is "qdrant".
func New(cfg *config.VectorDatabaseConfig, db *gorm.DB) (interfaces.VectorStore, error) {
	switch cfg.Driver {
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Dimensions)
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("vector: pgvector driver requires a database connection")
		}
		return NewPgvectorStore(db), nil
	default:
		return nil, fmt.Errorf("vector: unknown driver %q", cfg.Driver)
	}
}
