package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

func TestChatModel_ChatStream_TranslatesDeltasAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-5","choices":[{"index":0,"delta":{"content":"hel"},"finish_reason":null}]}`,
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-5","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":null}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	model := NewChatModel("test-key", srv.URL, "gpt-5")
	ch, err := model.ChatStream(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)

	var content string
	var sawDone bool
	for frame := range ch {
		if frame.Done {
			sawDone = true
			continue
		}
		require.Equal(t, types.ResponseTypeAnswer, frame.ResponseType)
		content += frame.Content
	}
	require.True(t, sawDone)
	require.Equal(t, "hello", content)
}

func TestChatModel_GetModelName(t *testing.T) {
	model := NewChatModel("k", "", "gpt-5")
	require.Equal(t, "gpt-5", model.GetModelName())
}
