package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedder_BatchEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	}))
	defer srv.Close()

	e := NewEmbedder(newTestClient(t, srv), "nomic-embed-text", 2)
	vectors, err := e.BatchEmbed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func TestEmbedder_Embed_ReturnsFirstVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"m","embeddings":[[0.9,0.1]]}`)
	}))
	defer srv.Close()

	e := NewEmbedder(newTestClient(t, srv), "m", 2)
	v, err := e.Embed(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, []float32{0.9, 0.1}, v)
}

func TestEmbedder_GetDimensions(t *testing.T) {
	e := NewEmbedder(nil, "m", 768)
	require.Equal(t, 768, e.GetDimensions())
}
