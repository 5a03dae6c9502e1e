package answerer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
)

func TestRunOverview_StreamsStockResponse(t *testing.T) {
	kv := newFakeKV()
	chat := &fakeChat{responses: [][]types.StreamResponse{{
		{ResponseType: types.ResponseTypeAnswer, Content: "I can't help with that yet, try again soon."},
	}}}
	a := newTestAnswerer(kv, &fakeVector{}, chat, types.IntentOverview)

	events := collect(a.Answer(context.Background(), Request{CourseID: "cs101", QueryID: "q1", RawQuery: "what's due this week?"}))

	require.True(t, len(events) >= 3)
	assert.Equal(t, types.AnswerEventStart, events[0].Type)
	assert.Equal(t, "I can't help with that yet, try again soon.", events[1].Message)
	assert.Equal(t, types.AnswerEventDone, events[len(events)-1].Type)

	require.Len(t, kv.puts, 1)
	sq := kv.puts[0].item.(*types.StudentQuery)
	assert.Equal(t, types.IntentOverview, sq.Intent)
}
