package ws

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Broadcast_WritesFrameToConnectedSocket(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	b := NewBroadcaster()
	b.now = func() time.Time { return time.Unix(0, 0) }
	b.conns[server] = struct{}{}
	require.Equal(t, 1, b.Count())

	done := make(chan StatusEvent, 1)
	go func() {
		frame, err := ws.ReadFrame(client)
		if err != nil {
			close(done)
			return
		}
		var ev StatusEvent
		_ = json.Unmarshal(frame.Payload, &ev)
		done <- ev
	}()

	b.Broadcast(StatusEvent{Stage: "scraper", Action: "full_scrape_done", Fields: map[string]interface{}{"course_id": "cs101"}})

	select {
	case ev := <-done:
		require.Equal(t, "scraper", ev.Stage)
		require.Equal(t, "full_scrape_done", ev.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}

func TestBroadcaster_Broadcast_DropsFailedConnection(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	server.Close()

	b := NewBroadcaster()
	b.conns[server] = struct{}{}

	b.Broadcast(StatusEvent{Stage: "notifier", Action: "run_done"})

	require.Equal(t, 0, b.Count())
}
