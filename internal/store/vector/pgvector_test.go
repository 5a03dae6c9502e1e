package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableFor_NamespacesByPrefix(t *testing.T) {
	p := &PgvectorStore{}
	assert.Equal(t, "vector_piazza", p.tableFor("piazza"))
	assert.Equal(t, "vector_cs101", p.tableFor("cs101"))
}
