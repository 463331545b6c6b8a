package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jukebox/internal/domain"
)

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSQueueBroadcastOnVote(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	// Let the hub finish registering the client before mutating.
	time.Sleep(50 * time.Millisecond)

	rec := doJSON(t, srv, http.MethodPost, "/queue/vote", `{"user":"alice","songId":"a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("vote: %d", rec.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type string              `json:"type"`
		Data []domain.QueueEntry `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode: %v\npayload: %s", err, payload)
	}
	if msg.Type != "queue" {
		t.Errorf("type = %q, want queue", msg.Type)
	}
	if len(msg.Data) != 1 || msg.Data[0].Item.SongID != "a" {
		t.Errorf("data = %+v", msg.Data)
	}
}

func TestWSHubCloseDisconnectsClients(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	time.Sleep(50 * time.Millisecond)
	srv.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
